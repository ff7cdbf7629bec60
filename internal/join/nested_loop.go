package join

// NestedLoop evaluates an arbitrary predicate over every combination
// of a left and a right element, in left-major, right-minor order: the
// right sequence is traversed from the start for each left element.
// It is the fallback for join conditions that cannot be decomposed
// into the two-inequality conjunction IEJoin requires, and the oracle
// the IEJoin tests compare against.
type NestedLoop[L, R any] struct {
	left  []L
	right []R
	pred  func(L, R) bool
	i, j  int
}

// NewNestedLoop creates a nested-loop join over the two sequences.
// pred must be side-effect free; it is called once per combination in
// traversal order.
func NewNestedLoop[L, R any](left []L, right []R, pred func(L, R) bool) *NestedLoop[L, R] {
	return &NestedLoop[L, R]{left: left, right: right, pred: pred}
}

// Next returns the next pair satisfying the predicate, or false when
// every combination has been tried.
func (n *NestedLoop[L, R]) Next() (L, R, bool) {
	for n.i < len(n.left) {
		for n.j < len(n.right) {
			l, r := n.left[n.i], n.right[n.j]
			n.j++
			if n.pred(l, r) {
				return l, r, true
			}
		}
		n.j = 0
		n.i++
	}
	var l L
	var r R
	return l, r, false
}
