//go:build !paranoid

package payload

// assertDisjoint is a no-op outside the "paranoid" build tag: Push already
// rejects any operation that would make announced and withdrawn overlap, so
// production builds don't pay for re-checking it.
func assertDisjoint(*DiffBuilder) {}
