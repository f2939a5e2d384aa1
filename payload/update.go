package payload

// Update is what a Gate broadcasts to its subscribers. Every Update carries
// the unit's resulting Set; a full update (a unit's first data, or whenever
// it cannot express its change as a diff) carries only that, while an
// incremental update also carries the Diff from the unit's previously
// published Set.
type Update struct {
	set    *Set
	diff   *Diff
	serial uint32
}

// NewFullUpdate wraps a complete Set as an Update.
func NewFullUpdate(set *Set, serial uint32) Update {
	return Update{set: set, serial: serial}
}

// NewDiffUpdate wraps a Set together with the Diff that produced it from
// the previous serial.
func NewDiffUpdate(set *Set, diff *Diff, serial uint32) Update {
	return Update{set: set, diff: diff, serial: serial}
}

// Set returns the resulting Set the update describes.
func (u Update) Set() *Set { return u.set }

// Diff returns the incremental diff, or nil if this update is a full
// replacement.
func (u Update) Diff() *Diff { return u.diff }

// IsDiff reports whether the update carries an incremental diff.
func (u Update) IsDiff() bool { return u.diff != nil }

// Serial returns the serial number the resulting set corresponds to.
func (u Update) Serial() uint32 { return u.serial }
