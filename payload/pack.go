package payload

// Block is an immutable, sorted, deduplicated run of Payload values. Blocks
// are the unit of sharing: a Set holds a slice of Blocks rather than a flat
// slice of Payload so that two Sets built from overlapping sources can share
// the Blocks they have in common instead of copying them.
//
// Block is reference-like: copying a Block header copies the slice header
// only, never the backing array, so passing a Block by value is cheap and
// safe as long as callers never mutate the slice in place (PackBuilder is
// the only code allowed to do that, and only before a Block escapes it).
type Block struct {
	items []Payload
}

// Len reports the number of payloads in the block.
func (b Block) Len() int { return len(b.items) }

// At returns the payload at index i.
func (b Block) At(i int) Payload { return b.items[i] }

// First returns the first payload in the block and true, or the zero value
// and false if the block is empty.
func (b Block) First() (Payload, bool) {
	if len(b.items) == 0 {
		return Payload{}, false
	}
	return b.items[0], true
}

// Last returns the last payload in the block and true, or the zero value
// and false if the block is empty.
func (b Block) Last() (Payload, bool) {
	if len(b.items) == 0 {
		return Payload{}, false
	}
	return b.items[len(b.items)-1], true
}

// Iter returns an iterator over the block's payloads in sorted order.
func (b Block) Iter() *BlockIter {
	return &BlockIter{items: b.items}
}

// BlockIter iterates a Block's payloads without copying them.
type BlockIter struct {
	items []Payload
	pos   int
}

// Next returns the next payload and true, or the zero value and false once
// the iterator is exhausted.
func (it *BlockIter) Next() (Payload, bool) {
	if it.pos >= len(it.items) {
		return Payload{}, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

// Pack is a finished, sorted, deduplicated, flat collection of payloads. It
// is what a unit produces in one pull: a single Block's worth of data before
// it has been folded into a Set's history.
type Pack struct {
	block Block
}

// Len reports the number of payloads in the pack.
func (p *Pack) Len() int {
	if p == nil {
		return 0
	}
	return p.block.Len()
}

// Block returns the pack's single underlying Block.
func (p *Pack) Block() Block {
	if p == nil {
		return Block{}
	}
	return p.block
}

// Iter returns an iterator over the pack's payloads in sorted order.
func (p *Pack) Iter() *BlockIter {
	if p == nil {
		return &BlockIter{}
	}
	return p.block.Iter()
}

// Contains reports whether v is present in the pack via binary search.
func (p *Pack) Contains(v Payload) bool {
	_, ok := search(p.Block().items, v)
	return ok
}

// PackBuilder accumulates payloads and produces a sorted, deduplicated Pack.
// It is the entry point for a unit that parses a file or wire message into
// payload data: push every record as it is parsed, then Finalize once.
type PackBuilder struct {
	items []Payload
}

// NewPackBuilder returns an empty PackBuilder, optionally pre-sizing its
// backing slice to capacity if a nonzero hint is given.
func NewPackBuilder(capacityHint int) *PackBuilder {
	b := &PackBuilder{}
	if capacityHint > 0 {
		b.items = make([]Payload, 0, capacityHint)
	}
	return b
}

// Push appends a payload. Order and duplicates are resolved at Finalize.
func (b *PackBuilder) Push(v Payload) {
	b.items = append(b.items, v)
}

// Finalize sorts and deduplicates the pushed payloads and returns the
// resulting Pack. The builder must not be reused afterwards.
func (b *PackBuilder) Finalize() *Pack {
	sortPayloads(b.items)
	b.items = dedup(b.items)
	return &Pack{block: Block{items: b.items}}
}

func sortPayloads(items []Payload) {
	// insertion sort would be fine for typical unit batch sizes, but units
	// can emit the full global RIB so use a quicksort, with insertion sort
	// only for short ranges.
	quickSort(items, 0, len(items)-1)
}

func quickSort(items []Payload, lo, hi int) {
	for lo < hi {
		if hi-lo < 12 {
			insertionSort(items, lo, hi)
			return
		}
		p := partition(items, lo, hi)
		if p-lo < hi-p {
			quickSort(items, lo, p-1)
			lo = p + 1
		} else {
			quickSort(items, p+1, hi)
			hi = p - 1
		}
	}
}

func insertionSort(items []Payload, lo, hi int) {
	for i := lo + 1; i <= hi; i++ {
		v := items[i]
		j := i - 1
		for j >= lo && items[j].Compare(v) > 0 {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = v
	}
}

func partition(items []Payload, lo, hi int) int {
	mid := lo + (hi-lo)/2
	items[mid], items[hi] = items[hi], items[mid]
	pivot := items[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if items[j].Compare(pivot) < 0 {
			items[i], items[j] = items[j], items[i]
			i++
		}
	}
	items[i], items[hi] = items[hi], items[i]
	return i
}

func dedup(items []Payload) []Payload {
	if len(items) == 0 {
		return items
	}
	out := items[:1]
	for _, v := range items[1:] {
		if v.Compare(out[len(out)-1]) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// search returns the index at which v is found (and true), or the index at
// which v would need to be inserted to keep the slice sorted (and false).
func search(items []Payload, v Payload) (int, bool) {
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case items[mid].Compare(v) < 0:
			lo = mid + 1
		case items[mid].Compare(v) > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}
