package join

import (
	"cmp"
	"sort"
)

// primaryIndex is the sorted union of both sides' first attribute.
// Index r holds the value, originating side and side-local row index of
// the row at rank r.
type primaryIndex[A cmp.Ordered] struct {
	values []A
	sides  []side
	locals []int
}

// secondaryEntry is one element of the sorted union of both sides'
// second attribute. rank is the position the same row occupies in the
// primary index.
type secondaryEntry[B cmp.Ordered] struct {
	value B
	rank  int
}

// argsortUnion sorts the concatenation positions [0, len(left)+len(right))
// of the two columns by value in the given direction. Entries with equal
// values order the sides per leftFirst and fall back to side-local row
// order, so the result is deterministic for any input.
func argsortUnion[T cmp.Ordered](left, right []T, order SortOrder, leftFirst bool) []int {
	n := len(left)
	idx := make([]int, n+len(right))
	for i := range idx {
		idx[i] = i
	}
	valueAt := func(c int) T {
		if c < n {
			return left[c]
		}
		return right[c-n]
	}
	sort.Slice(idx, func(i, j int) bool {
		ci, cj := idx[i], idx[j]
		if c := cmp.Compare(valueAt(ci), valueAt(cj)); c != 0 {
			if order == Ascending {
				return c < 0
			}
			return c > 0
		}
		li, lj := ci < n, cj < n
		if li != lj {
			if leftFirst {
				return li
			}
			return lj
		}
		// Same side: concatenation order is side-local row order.
		return ci < cj
	})
	return idx
}

// buildPrimary sorts the union of the first predicate's columns and
// returns the primary index plus the inverse permutation mapping each
// concatenation position to its rank.
//
// Ties across sides break so that rank order encodes the operator
// exactly: under a strict operator an equal pair must not match, so
// left rows rank first; under a non-strict operator it must, so right
// rows rank first.
func buildPrimary[A cmp.Ordered](p Predicate[A]) (*primaryIndex[A], []int) {
	idx := argsortUnion(p.Left, p.Right, primaryOrder(p.Op), p.Op.strict())
	n := len(p.Left)
	pi := &primaryIndex[A]{
		values: make([]A, len(idx)),
		sides:  make([]side, len(idx)),
		locals: make([]int, len(idx)),
	}
	inv := make([]int, len(idx))
	for rank, c := range idx {
		inv[c] = rank
		if c < n {
			pi.values[rank] = p.Left[c]
			pi.sides[rank] = sideLeft
			pi.locals[rank] = c
		} else {
			pi.values[rank] = p.Right[c-n]
			pi.sides[rank] = sideRight
			pi.locals[rank] = c - n
		}
	}
	return pi, inv
}

// buildSecondary sorts the union of the second predicate's columns and
// tags every entry with its row's rank in the primary index, read off
// the inverse permutation from buildPrimary.
//
// The cross-side tie order is the mirror of buildPrimary's: a strict
// operator ranks right rows first so an equal pair cannot match, a
// non-strict operator ranks left rows first so it does.
func buildSecondary[B cmp.Ordered](p Predicate[B], inv []int) []secondaryEntry[B] {
	idx := argsortUnion(p.Left, p.Right, secondaryOrder(p.Op), !p.Op.strict())
	n := len(p.Left)
	entries := make([]secondaryEntry[B], len(idx))
	for pos, c := range idx {
		var v B
		if c < n {
			v = p.Left[c]
		} else {
			v = p.Right[c-n]
		}
		entries[pos] = secondaryEntry[B]{value: v, rank: inv[c]}
	}
	return entries
}
