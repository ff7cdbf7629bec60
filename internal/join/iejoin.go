package join

import (
	"cmp"
	"math"

	"github.com/dshills/QuantaJoin/internal/errors"
)

// Pair is one join match. A and B are copies of the matched attribute
// values; Left and Right identify the originating rows by position in
// their input columns.
type Pair[A, B cmp.Ordered] struct {
	A     A
	B     B
	Left  int
	Right int
}

// IEJoin lazily enumerates every (left row, right row) pair satisfying
// a conjunction of two inequality predicates. A pair (l, r) is in the
// output exactly when "l.A op1 r.A" and "l.B op2 r.B" both hold, and is
// emitted as (l's A value, r's B value).
//
// Construction is eager: both attribute unions are sorted up front, so
// a join over n left and m right rows costs O((n+m) log(n+m)) to build
// and O(entries scanned + pairs produced) to drain, with O(n+m)
// auxiliary memory however large the output is.
//
// The mechanism: the secondary union orders rows so that l precedes r
// exactly when l.B op2 r.B (ties included), and the primary union
// assigns ranks so that rank(l) > rank(r) exactly when l.A op1 r.A.
// Walking the secondary union in order, each left row marks its
// primary rank active; each right row drains the active ranks at or
// after its own, every hit being a match. An IEJoin is not safe for
// concurrent use.
type IEJoin[A, B cmp.Ordered] struct {
	l1   *primaryIndex[A]
	l2   []secondaryEntry[B]
	pos  int
	scan *rankScanner
}

// NewIEJoin builds a join instance from the two predicates. It fails
// fast when the predicates disagree on the number of rows a side has,
// since the rank cross-reference between the two sorted unions is
// meaningless unless both predicates describe the same row population.
func NewIEJoin[A, B cmp.Ordered](p1 Predicate[A], p2 Predicate[B]) (*IEJoin[A, B], error) {
	if !p1.Op.Valid() {
		return nil, errors.InvalidOperatorError(p1.Op.String())
	}
	if !p2.Op.Valid() {
		return nil, errors.InvalidOperatorError(p2.Op.String())
	}
	if len(p1.Left) != len(p2.Left) {
		return nil, errors.ArityMismatchError("left", len(p1.Left), len(p2.Left))
	}
	if len(p1.Right) != len(p2.Right) {
		return nil, errors.ArityMismatchError("right", len(p1.Right), len(p2.Right))
	}
	total := int64(len(p1.Left)) + int64(len(p1.Right))
	if total > math.MaxUint32 {
		return nil, errors.InputTooLargeError(total)
	}

	l1, inv := buildPrimary(p1)
	l2 := buildSecondary(p2, inv)
	return &IEJoin[A, B]{
		l1:   l1,
		l2:   l2,
		scan: newRankScanner(),
	}, nil
}

// Next returns the next matching pair. The second result is false once
// all matches have been produced; the iteration is finite and cannot
// be restarted. No particular output order is promised beyond what the
// scan produces.
func (j *IEJoin[A, B]) Next() (Pair[A, B], bool) {
	for j.pos < len(j.l2) {
		entry := j.l2[j.pos]
		j.scan.resetStart(uint32(entry.rank)) //nolint:gosec // Rank domain checked at construction

		if j.l1.sides[entry.rank] == sideLeft {
			// Left rows never produce output themselves; they arm
			// matches for the right rows that follow in l2 order.
			j.scan.mark(uint32(entry.rank)) //nolint:gosec // Rank domain checked at construction
			j.pos++
			continue
		}

		// Right row: drain active ranks at or after its own. Its own
		// rank is never marked, so the scan cannot self-match. The l2
		// cursor stays put until the epoch is exhausted because one
		// right row may match many left rows.
		rank, ok := j.scan.next()
		if !ok {
			j.pos++
			continue
		}
		r := int(rank)
		return Pair[A, B]{
			A:     j.l1.values[r],
			B:     entry.value,
			Left:  j.l1.locals[r],
			Right: j.l1.locals[entry.rank],
		}, true
	}
	return Pair[A, B]{}, false
}
