//go:build paranoid

package payload

// assertDisjoint re-derives the announce/withdraw disjointness invariant
// Push already maintains incrementally. Built only under the "paranoid" tag
// so test runs can afford the O(n) re-check without paying it in production.
func assertDisjoint(b *DiffBuilder) {
	for v := range b.announced {
		if b.withdrawn[v] {
			panic("payload: DiffBuilder produced a payload both announced and withdrawn")
		}
	}
}
