package payload

// Set is an immutable, logically sorted, deduplicated view over one or more
// Blocks. Unlike Pack, which is always a single flat Block, a Set may be
// backed by several non-overlapping Blocks inherited from whichever Packs
// and Diffs contributed to it; the blocks are kept in ascending, disjoint
// key-range order so an iterator over the Set can walk them in sequence
// without ever merging the underlying arrays.
type Set struct {
	blocks []Block
}

// Empty is the empty Set.
var Empty = &Set{}

// NewSet builds a Set directly from a single Pack, with no merge required.
func NewSet(p *Pack) *Set {
	if p.Len() == 0 {
		return Empty
	}
	return &Set{blocks: []Block{p.Block()}}
}

// Len reports the total number of payloads across all blocks.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, b := range s.blocks {
		n += b.Len()
	}
	return n
}

// Blocks returns the Set's underlying blocks in ascending order. Callers
// must not mutate the returned slice's backing array.
func (s *Set) Blocks() []Block {
	if s == nil {
		return nil
	}
	return s.blocks
}

// Contains reports whether v is present anywhere in the set.
func (s *Set) Contains(v Payload) bool {
	for _, b := range s.Blocks() {
		if _, ok := search(b.items, v); ok {
			return true
		}
	}
	return false
}

// Iter returns an iterator that walks every payload in the set in sorted
// order across block boundaries.
func (s *Set) Iter() *SetIter {
	return &SetIter{blocks: s.Blocks()}
}

// SetIter iterates a Set's payloads in sorted order, crossing block
// boundaries transparently.
type SetIter struct {
	blocks []Block
	bi     int
	pi     int
}

// Next returns the next payload and true, or the zero value and false once
// every block has been exhausted.
func (it *SetIter) Next() (Payload, bool) {
	for it.bi < len(it.blocks) {
		b := it.blocks[it.bi]
		if it.pi < b.Len() {
			v := b.At(it.pi)
			it.pi++
			return v, true
		}
		it.bi++
		it.pi = 0
	}
	return Payload{}, false
}

// SetBuilder merges Packs, Blocks, and other Sets into a single new,
// deduplicated Set. It underlies Diff application and the `slurm` unit
// (filtering a source's Set and inserting local assertions).
type SetBuilder struct {
	blocks []Block
	dirty  bool
}

// NewSetBuilder returns an empty SetBuilder.
func NewSetBuilder() *SetBuilder {
	return &SetBuilder{}
}

// InsertSet appends every block of s. The blocks are not merged with any
// existing content until Finalize runs, so pushing several sets is O(1) per
// set regardless of size — the expensive sort/dedup pass happens once.
func (b *SetBuilder) InsertSet(s *Set) {
	if s == nil || s.Len() == 0 {
		return
	}
	b.blocks = append(b.blocks, s.Blocks()...)
	b.dirty = true
}

// InsertPack appends a pack's block.
func (b *SetBuilder) InsertPack(p *Pack) {
	if p.Len() == 0 {
		return
	}
	b.blocks = append(b.blocks, p.Block())
	b.dirty = true
}

// Filter removes every payload for which keep returns false. It operates
// block-by-block: a block untouched by the predicate is kept whole (sharing
// its backing array), and only a block with at least one dropped payload is
// rebuilt into a fresh, smaller block. This mirrors how the `slurm` unit
// applies validation-output filters to an upstream Set without copying data
// it doesn't need to touch.
func (b *SetBuilder) Filter(keep func(Payload) bool) {
	out := b.blocks[:0]
	for _, blk := range b.blocks {
		if blockAllMatch(blk, keep) {
			out = append(out, blk)
			continue
		}
		items := make([]Payload, 0, blk.Len())
		it := blk.Iter()
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			if keep(v) {
				items = append(items, v)
			}
		}
		if len(items) > 0 {
			out = append(out, Block{items: items})
		}
	}
	b.blocks = out
	b.dirty = true
}

func blockAllMatch(b Block, keep func(Payload) bool) bool {
	it := b.Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if !keep(v) {
			return false
		}
	}
	return true
}

// Finalize merges every inserted block into a minimal set of sorted,
// disjoint blocks and returns the result. Rather than flattening every
// input block into one fresh slice, it runs a k-way merge across the
// blocks as given: a stretch of output that comes from a single input
// block, uninterrupted by another block's entries, is emitted as a Block
// view over that same input block's backing array (blk.items[lo:hi]), not
// a copy. A run ends wherever another block's entry comes next in key
// order; a key held by several blocks is taken from one of them and skipped
// in the others. The builder must not be reused afterwards.
func (b *SetBuilder) Finalize() *Set {
	if len(b.blocks) == 0 {
		return Empty
	}
	if len(b.blocks) == 1 && !overlapsSelf(b.blocks[0]) {
		return &Set{blocks: b.blocks}
	}

	blocks := make([]Block, len(b.blocks))
	for i, blk := range b.blocks {
		if overlapsSelf(blk) {
			items := append([]Payload(nil), blk.items...)
			sortPayloads(items)
			blocks[i] = Block{items: dedup(items)}
		} else {
			blocks[i] = blk
		}
	}

	merged := mergeBlocks(blocks)
	if len(merged) == 0 {
		return Empty
	}
	return &Set{blocks: merged}
}

// mergeBlocks runs a k-way merge across blocks, each already individually
// sorted and duplicate-free, and returns the minimal set of sorted,
// disjoint blocks covering their union. A run of consecutive output values
// taken from one input block is returned as a Block view (a sub-slice) over
// that input block rather than a newly allocated one.
func mergeBlocks(blocks []Block) []Block {
	type cursor struct {
		items []Payload
		pos   int
		start int
		open  bool
	}
	cursors := make([]cursor, 0, len(blocks))
	for _, blk := range blocks {
		if blk.Len() > 0 {
			cursors = append(cursors, cursor{items: blk.items})
		}
	}

	var out []Block
	closeRun := func(c *cursor) {
		if c.open {
			out = append(out, Block{items: c.items[c.start:c.pos]})
			c.open = false
		}
	}

	last := -1
	for {
		winner := -1
		for i := range cursors {
			if cursors[i].pos >= len(cursors[i].items) {
				continue
			}
			if winner == -1 || cursors[i].items[cursors[i].pos].Compare(cursors[winner].items[cursors[winner].pos]) < 0 {
				winner = i
			}
		}
		if winner == -1 {
			break
		}
		if last >= 0 && last != winner {
			closeRun(&cursors[last])
		}
		last = winner
		winnerVal := cursors[winner].items[cursors[winner].pos]

		for i := range cursors {
			if i == winner {
				continue
			}
			c := &cursors[i]
			if c.pos < len(c.items) && c.items[c.pos].Compare(winnerVal) == 0 {
				closeRun(c)
				c.pos++
			}
		}

		wc := &cursors[winner]
		if !wc.open {
			wc.start = wc.pos
			wc.open = true
		}
		wc.pos++
	}
	for i := range cursors {
		closeRun(&cursors[i])
	}
	return out
}

func overlapsSelf(b Block) bool {
	for i := 1; i < b.Len(); i++ {
		if b.At(i-1).Compare(b.At(i)) >= 0 {
			return true
		}
	}
	return false
}
