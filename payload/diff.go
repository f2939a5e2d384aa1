package payload

// Action distinguishes an announcement from a withdrawal inside a Diff.
type Action bool

const (
	// Announce marks a payload being added.
	Announce Action = true
	// Withdraw marks a payload being removed.
	Withdraw Action = false
)

func (a Action) String() string {
	if a == Announce {
		return "announce"
	}
	return "withdraw"
}

// Diff is an incremental update between two Sets: the payloads newly
// announced and the payloads withdrawn. A Diff's announce and withdraw
// collections are always disjoint — DiffBuilder enforces this at push
// time, so a fully built Diff is never inconsistent in production; tests
// may additionally assert it at Finalize under the "paranoid" build tag.
type Diff struct {
	announce *Set
	withdraw *Set
}

// Announce returns the set of newly announced payloads.
func (d *Diff) Announce() *Set {
	if d == nil {
		return Empty
	}
	return d.announce
}

// Withdraw returns the set of withdrawn payloads.
func (d *Diff) Withdraw() *Set {
	if d == nil {
		return Empty
	}
	return d.withdraw
}

// Len reports the number of changed entries (announced plus withdrawn).
func (d *Diff) Len() int {
	return d.Announce().Len() + d.Withdraw().Len()
}

// Iter returns an iterator over every (Payload, Action) pair in the diff,
// announcements first.
func (d *Diff) Iter() *DiffIter {
	return &DiffIter{a: d.Announce().Iter(), w: d.Withdraw().Iter()}
}

// DiffIter iterates a Diff's entries, announcements before withdrawals.
type DiffIter struct {
	a, w   *SetIter
	inWith bool
}

// Next returns the next (payload, action) pair and true, or the zero values
// and false once the diff is exhausted.
func (it *DiffIter) Next() (Payload, Action, bool) {
	if !it.inWith {
		if v, ok := it.a.Next(); ok {
			return v, Announce, true
		}
		it.inWith = true
	}
	if v, ok := it.w.Next(); ok {
		return v, Withdraw, true
	}
	return Payload{}, false, false
}

// Apply produces the Set that results from applying the diff to base. It
// errors with ErrUnknownWithdraw if the diff withdraws a payload absent from
// base, and with ErrDuplicateAnnounce if it announces a payload already
// present in base — the try_insert_block check of a diff's announced block
// against the base it's being merged into. This mirrors the strict update
// path a target takes when folding a unit's diff into its own current
// state.
func (d *Diff) Apply(base *Set) (*Set, error) {
	remaining := map[Payload]bool{}
	wi := d.Withdraw().Iter()
	for v, ok := wi.Next(); ok; v, ok = wi.Next() {
		remaining[v] = true
	}
	announced := map[Payload]bool{}
	ai := d.Announce().Iter()
	for v, ok := ai.Next(); ok; v, ok = ai.Next() {
		announced[v] = true
	}

	sb := NewSetBuilder()
	for _, blk := range base.Blocks() {
		kept, err := splitSurvivors(blk, remaining, announced)
		if err != nil {
			return nil, err
		}
		sb.blocks = append(sb.blocks, kept...)
	}
	if len(remaining) > 0 {
		return nil, ErrUnknownWithdraw
	}
	sb.InsertSet(d.Announce())
	return sb.Finalize(), nil
}

// splitSurvivors walks blk in order, dropping any payload present in drop
// (removing it from drop as it's matched, so a caller can tell afterwards
// which withdrawals were never found in base) and failing with
// ErrDuplicateAnnounce if announced names a payload blk already holds — the
// try_insert_block check of a diff's announced block against the base it's
// being merged into. announced may be nil to skip that check (used by
// ApplyRelaxed, which tolerates duplicates).
//
// A contiguous run of kept payloads is returned as a single Block view over
// blk's own backing array rather than copied, so Apply shares as much of
// base's block storage as possible with the Set it returns.
func splitSurvivors(blk Block, drop, announced map[Payload]bool) ([]Block, error) {
	var out []Block
	start := -1
	for i := 0; i < blk.Len(); i++ {
		v := blk.At(i)
		switch {
		case drop[v]:
			delete(drop, v)
			if start >= 0 {
				out = append(out, Block{items: blk.items[start:i]})
				start = -1
			}
		case announced != nil && announced[v]:
			return nil, ErrDuplicateAnnounce
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		out = append(out, Block{items: blk.items[start:blk.Len()]})
	}
	return out, nil
}

// ApplyRelaxed is Apply but silently ignores withdrawals of payloads that
// are not present in base, rather than erroring. Targets use this for the
// non-authoritative application of a diff coming from an `any` combinator
// whose upstream switched sources between pulls.
func (d *Diff) ApplyRelaxed(base *Set) *Set {
	withdrawn := map[Payload]bool{}
	it := d.Withdraw().Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		withdrawn[v] = true
	}

	sb := NewSetBuilder()
	for _, blk := range base.Blocks() {
		kept, _ := splitSurvivors(blk, withdrawn, nil)
		sb.blocks = append(sb.blocks, kept...)
	}
	sb.InsertSet(d.Announce())
	return sb.Finalize()
}

// Extend composes two sequential diffs: the result is the diff that takes
// whatever d.Apply would start from all the way to where applying next on
// top of that would end up, i.e. `next.Apply(d.Apply(base)) ==
// d.Extend(next).Apply(base)`. This is how the RTR server target keeps an
// older retained history entry expressed as "diff from serial S to the
// latest" every time a new update arrives, instead of keeping only
// consecutive single-hop diffs.
func (d *Diff) Extend(next *Diff) (*Diff, error) {
	b := NewDiffBuilder()
	if err := b.PushDiff(d); err != nil {
		return nil, err
	}
	if err := b.PushDiff(next); err != nil {
		return nil, err
	}
	return b.Finalize(), nil
}

// DiffBuilder accumulates Announce/Withdraw operations and produces a Diff.
// It is how a unit expresses an incremental change: the RTR client pushes
// one operation per prefix PDU it receives; the `json` and `slurm` units
// instead compute a whole new Set and derive a Diff against the previous
// one via Between.
type DiffBuilder struct {
	announced map[Payload]bool
	withdrawn map[Payload]bool
}

// NewDiffBuilder returns an empty DiffBuilder.
func NewDiffBuilder() *DiffBuilder {
	return &DiffBuilder{announced: map[Payload]bool{}, withdrawn: map[Payload]bool{}}
}

// Push records a single announce or withdraw operation. Announcing a
// payload already pending withdrawal cancels the withdrawal (and vice
// versa) rather than erroring, matching how rtrtr's DiffBuilder::push
// collapses an announce-then-withdraw-same-serial sequence. Pushing the
// same action twice for the same payload is an error.
func (b *DiffBuilder) Push(v Payload, action Action) error {
	switch action {
	case Announce:
		if b.announced[v] {
			return ErrDuplicateAnnounce
		}
		if b.withdrawn[v] {
			delete(b.withdrawn, v)
			return nil
		}
		b.announced[v] = true
	case Withdraw:
		if b.withdrawn[v] {
			return ErrUnknownWithdraw
		}
		if b.announced[v] {
			delete(b.announced, v)
			return nil
		}
		b.withdrawn[v] = true
	}
	return nil
}

// PushDiff folds every operation of other into this builder, in order.
func (b *DiffBuilder) PushDiff(other *Diff) error {
	it := other.Iter()
	for v, action, ok := it.Next(); ok; v, action, ok = it.Next() {
		if err := b.Push(v, action); err != nil {
			return err
		}
	}
	return nil
}

// Finalize builds the resulting Diff.
func (b *DiffBuilder) Finalize() *Diff {
	ab := NewPackBuilder(len(b.announced))
	for v := range b.announced {
		ab.Push(v)
	}
	wb := NewPackBuilder(len(b.withdrawn))
	for v := range b.withdrawn {
		wb.Push(v)
	}
	d := &Diff{announce: NewSet(ab.Finalize()), withdraw: NewSet(wb.Finalize())}
	assertDisjoint(b)
	return d
}

// Between computes the Diff that turns `from` into `to`: every payload in
// `to` but not `from` is announced, every payload in `from` but not `to` is
// withdrawn. Units that recompute their whole Set each pull (`json`, the
// filtering stage of `slurm`) use this to produce the Diff their Gate
// broadcasts downstream.
func Between(from, to *Set) *Diff {
	b := NewDiffBuilder()
	fi, ti := from.Iter(), to.Iter()
	fv, fok := fi.Next()
	tv, tok := ti.Next()
	for fok || tok {
		switch {
		case fok && (!tok || fv.Compare(tv) < 0):
			_ = b.Push(fv, Withdraw)
			fv, fok = fi.Next()
		case tok && (!fok || tv.Compare(fv) < 0):
			_ = b.Push(tv, Announce)
			tv, tok = ti.Next()
		default:
			fv, fok = fi.Next()
			tv, tok = ti.Next()
		}
	}
	return b.Finalize()
}
