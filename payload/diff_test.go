package payload

import "testing"

func TestDiffBuilderAnnounceCancelsPendingWithdraw(t *testing.T) {
	v := vrp("10.0.0.0/8", 24, 1)
	b := NewDiffBuilder()
	if err := b.Push(v, Withdraw); err != nil {
		t.Fatalf("Push(Withdraw): %v", err)
	}
	if err := b.Push(v, Announce); err != nil {
		t.Fatalf("Push(Announce) after Withdraw should cancel, not error: %v", err)
	}
	d := b.Finalize()
	if d.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (withdraw+announce of the same payload cancels out)", d.Len())
	}
}

func TestDiffBuilderRejectsDuplicateAnnounce(t *testing.T) {
	v := vrp("10.0.0.0/8", 24, 1)
	b := NewDiffBuilder()
	if err := b.Push(v, Announce); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := b.Push(v, Announce); err == nil {
		t.Fatalf("second Announce of the same payload should error")
	}
}

func TestDiffBuilderRejectsDuplicateWithdraw(t *testing.T) {
	v := vrp("10.0.0.0/8", 24, 1)
	b := NewDiffBuilder()
	if err := b.Push(v, Withdraw); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := b.Push(v, Withdraw); err == nil {
		t.Fatalf("second Withdraw of the same payload should error")
	}
}

func TestBetweenAndApplyRoundTrip(t *testing.T) {
	from := setOf(vrp("10.0.0.0/8", 24, 1), vrp("10.0.0.0/8", 24, 2))
	to := setOf(vrp("10.0.0.0/8", 24, 2), vrp("11.0.0.0/8", 8, 3))

	d := Between(from, to)
	if d.Announce().Len() != 1 || !d.Announce().Contains(vrp("11.0.0.0/8", 8, 3)) {
		t.Fatalf("Announce() = %v, want just the new payload", d.Announce())
	}
	if d.Withdraw().Len() != 1 || !d.Withdraw().Contains(vrp("10.0.0.0/8", 24, 1)) {
		t.Fatalf("Withdraw() = %v, want just the dropped payload", d.Withdraw())
	}

	applied, err := d.Apply(from)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.Len() != to.Len() {
		t.Fatalf("Apply(from) has %d entries, want %d", applied.Len(), to.Len())
	}
	it := to.Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if !applied.Contains(v) {
			t.Fatalf("Apply(from) missing %s", v)
		}
	}
}

func TestApplyErrorsOnUnknownWithdraw(t *testing.T) {
	base := setOf(vrp("10.0.0.0/8", 24, 1))
	b := NewDiffBuilder()
	_ = b.Push(vrp("11.0.0.0/8", 8, 9), Withdraw)
	d := b.Finalize()

	if _, err := d.Apply(base); err == nil {
		t.Fatalf("Apply should error withdrawing a payload absent from base")
	}
}

func TestApplyErrorsOnDuplicateAnnounce(t *testing.T) {
	v := vrp("10.0.0.0/8", 24, 1)
	base := setOf(v)
	b := NewDiffBuilder()
	_ = b.Push(v, Announce)
	d := b.Finalize()

	if _, err := d.Apply(base); err != ErrDuplicateAnnounce {
		t.Fatalf("Apply(base) err = %v, want ErrDuplicateAnnounce", err)
	}
}

func TestApplySharesUntouchedBaseBlock(t *testing.T) {
	p := packOf(vrp("10.0.0.0/8", 24, 1), vrp("10.0.0.0/8", 16, 2))
	base := NewSet(p)

	b := NewDiffBuilder()
	_ = b.Push(vrp("11.0.0.0/8", 8, 3), Announce)
	d := b.Finalize()

	applied, err := d.Apply(base)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	blocks := applied.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("Blocks() has %d blocks, want 2 (untouched base block plus the new announce)", len(blocks))
	}
	if &blocks[0].items[0] != &p.Block().items[0] {
		t.Fatalf("Apply didn't share base's block storage for an untouched run")
	}
}

func TestApplyRelaxedIgnoresUnknownWithdraw(t *testing.T) {
	base := setOf(vrp("10.0.0.0/8", 24, 1))
	b := NewDiffBuilder()
	_ = b.Push(vrp("11.0.0.0/8", 8, 9), Withdraw)
	_ = b.Push(vrp("12.0.0.0/8", 8, 9), Announce)
	d := b.Finalize()

	result := d.ApplyRelaxed(base)
	if !result.Contains(vrp("10.0.0.0/8", 24, 1)) {
		t.Fatalf("ApplyRelaxed dropped an untouched base payload")
	}
	if !result.Contains(vrp("12.0.0.0/8", 8, 9)) {
		t.Fatalf("ApplyRelaxed didn't apply the announce")
	}
}

func TestDiffExtendComposesSequentialDiffs(t *testing.T) {
	base := setOf(vrp("10.0.0.0/8", 24, 1))
	mid := setOf(vrp("10.0.0.0/8", 24, 1), vrp("11.0.0.0/8", 8, 2))
	final := setOf(vrp("11.0.0.0/8", 8, 2), vrp("12.0.0.0/8", 8, 3))

	first := Between(base, mid)
	second := Between(mid, final)

	extended, err := first.Extend(second)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}

	viaExtend, err := extended.Apply(base)
	if err != nil {
		t.Fatalf("Apply(extended): %v", err)
	}

	afterFirst, err := first.Apply(base)
	if err != nil {
		t.Fatalf("Apply(first): %v", err)
	}
	viaChain, err := second.Apply(afterFirst)
	if err != nil {
		t.Fatalf("Apply(second): %v", err)
	}

	if viaExtend.Len() != viaChain.Len() {
		t.Fatalf("Extend result has %d entries, chained application has %d", viaExtend.Len(), viaChain.Len())
	}
	it := viaChain.Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if !viaExtend.Contains(v) {
			t.Fatalf("Extend result missing %s present via chained Apply", v)
		}
	}
}
