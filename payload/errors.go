package payload

import "errors"

// ErrDuplicateAnnounce is returned when a DiffBuilder is asked to announce a
// payload already pending announcement in the same diff, or when Diff.Apply
// is asked to apply a diff that announces a payload already present in the
// base set.
var ErrDuplicateAnnounce = errors.New("payload: duplicate announce")

// ErrUnknownWithdraw is returned when a DiffBuilder is asked to withdraw a
// payload already pending withdrawal in the same diff, or when Diff.Apply is
// asked to apply a diff that withdraws a payload absent from the base set.
var ErrUnknownWithdraw = errors.New("payload: withdraw of unknown payload")

// ErrCorrupt marks a Diff or Set that fails its own well-formedness
// invariants (unsorted, duplicate entries, or an announce/withdraw overlap).
var ErrCorrupt = errors.New("payload: corrupt data")
