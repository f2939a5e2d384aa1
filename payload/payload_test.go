package payload

import (
	"net/netip"
	"testing"
)

func vrp(prefix string, maxLength uint8, asn uint32) Payload {
	return Payload{Prefix: netip.MustParsePrefix(prefix), MaxLength: maxLength, ASN: asn}
}

func TestPayloadCompare(t *testing.T) {
	a := vrp("10.0.0.0/8", 16, 64496)
	b := vrp("10.0.0.0/8", 24, 64496)
	c := vrp("10.0.0.0/8", 16, 64497)
	d := vrp("11.0.0.0/8", 8, 64496)

	if a.Compare(a) != 0 {
		t.Fatalf("a.Compare(a) = %d, want 0", a.Compare(a))
	}
	if a.Compare(b) >= 0 {
		t.Fatalf("shorter max-length should sort first")
	}
	if a.Compare(c) >= 0 {
		t.Fatalf("lower ASN should sort first")
	}
	if a.Compare(d) >= 0 {
		t.Fatalf("lower prefix should sort first")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("Compare should be antisymmetric")
	}
}

func TestPackBuilderSortsAndDedups(t *testing.T) {
	b := NewPackBuilder(0)
	b.Push(vrp("10.0.0.0/8", 24, 2))
	b.Push(vrp("10.0.0.0/8", 16, 1))
	b.Push(vrp("10.0.0.0/8", 16, 1)) // duplicate
	pack := b.Finalize()

	if pack.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate not dropped)", pack.Len())
	}
	first, _ := pack.Block().First()
	if first.ASN != 1 || first.MaxLength != 16 {
		t.Fatalf("first entry = %+v, want the maxlength-16 ASN-1 entry sorted first", first)
	}
	if !pack.Contains(vrp("10.0.0.0/8", 24, 2)) {
		t.Fatalf("Contains() false for a pushed payload")
	}
	if pack.Contains(vrp("10.0.0.0/8", 32, 9)) {
		t.Fatalf("Contains() true for a payload never pushed")
	}
}

func TestSetBuilderMergesOverlappingInput(t *testing.T) {
	p1 := packOf(vrp("10.0.0.0/8", 24, 1), vrp("10.0.0.0/8", 16, 2))
	p2 := packOf(vrp("10.0.0.0/8", 24, 1), vrp("11.0.0.0/8", 8, 3)) // shares one entry with p1

	sb := NewSetBuilder()
	sb.InsertPack(p1)
	sb.InsertPack(p2)
	set := sb.Finalize()

	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (overlap must be deduplicated)", set.Len())
	}
	for _, v := range []Payload{
		vrp("10.0.0.0/8", 24, 1),
		vrp("10.0.0.0/8", 16, 2),
		vrp("11.0.0.0/8", 8, 3),
	} {
		if !set.Contains(v) {
			t.Fatalf("set missing %s", v)
		}
	}
}

func TestSetBuilderFilterDropsRejectedPayloads(t *testing.T) {
	p := packOf(vrp("10.0.0.0/8", 16, 1), vrp("10.0.0.0/8", 16, 2), vrp("10.0.0.0/8", 16, 3))
	sb := NewSetBuilder()
	sb.InsertPack(p)
	sb.Filter(func(v Payload) bool { return v.ASN != 2 })
	set := sb.Finalize()

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	if set.Contains(vrp("10.0.0.0/8", 16, 2)) {
		t.Fatalf("filtered-out payload still present")
	}
}

func TestSetBuilderFinalizeSharesDisjointBlockStorage(t *testing.T) {
	p1 := packOf(vrp("10.0.0.0/8", 24, 1), vrp("10.0.0.0/8", 16, 2))
	p2 := packOf(vrp("11.0.0.0/8", 8, 3), vrp("12.0.0.0/8", 8, 4))

	sb := NewSetBuilder()
	sb.InsertPack(p1)
	sb.InsertPack(p2)
	set := sb.Finalize()

	blocks := set.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("Blocks() has %d blocks, want 2 (disjoint input blocks should pass through unmerged)", len(blocks))
	}
	if &blocks[0].items[0] != &p1.Block().items[0] {
		t.Fatalf("first block doesn't share p1's backing array")
	}
	if &blocks[1].items[0] != &p2.Block().items[0] {
		t.Fatalf("second block doesn't share p2's backing array")
	}
}

func packOf(vs ...Payload) *Pack {
	b := NewPackBuilder(len(vs))
	for _, v := range vs {
		b.Push(v)
	}
	return b.Finalize()
}

func setOf(vs ...Payload) *Set {
	return NewSet(packOf(vs...))
}
