// Package payload implements the route-origin data model shared by every
// unit and target: a sorted, deduplicated collection of VRPs, the
// structurally-shared Pack/Set/Diff family used to move that data between
// units without copying it, and the builders that construct them.
package payload

import (
	"fmt"
	"net/netip"
)

// Payload is a single Validated ROA Payload: a prefix, its max length, and
// the ASN permitted to originate it. It is comparable with == and totally
// ordered by Compare, which lets it key a map and sort inside a Pack.
type Payload struct {
	Prefix    netip.Prefix
	MaxLength uint8
	ASN       uint32
}

// Compare orders Payload values by prefix, then max length, then ASN. It
// defines the sole sort order used throughout the package: every Pack and
// Block is kept sorted by this order so merges can proceed by linear scan.
func (p Payload) Compare(other Payload) int {
	if c := comparePrefix(p.Prefix, other.Prefix); c != 0 {
		return c
	}
	if p.MaxLength != other.MaxLength {
		if p.MaxLength < other.MaxLength {
			return -1
		}
		return 1
	}
	switch {
	case p.ASN < other.ASN:
		return -1
	case p.ASN > other.ASN:
		return 1
	default:
		return 0
	}
}

func comparePrefix(a, b netip.Prefix) int {
	aa, ba := a.Addr(), b.Addr()
	if c := aa.Compare(ba); c != 0 {
		return c
	}
	if a.Bits() != b.Bits() {
		if a.Bits() < b.Bits() {
			return -1
		}
		return 1
	}
	return 0
}

func (p Payload) String() string {
	return fmt.Sprintf("%s-%d => AS%d", p.Prefix, p.MaxLength, p.ASN)
}
