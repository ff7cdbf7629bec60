package join

import (
	roaring "github.com/RoaringBitmap/roaring/v2"
)

// rankScanner tracks which primary ranks are active and enumerates
// them in forward order from a movable start rank.
//
// Marks are monotone: a rank once marked stays marked for the life of
// the join. Only the cursor resets. The span between two effective
// resets is an epoch; within one epoch every marked rank at or after
// the start is yielded at most once.
type rankScanner struct {
	marked *roaring.Bitmap
	it     roaring.IntPeekable
	start  uint32
}

func newRankScanner() *rankScanner {
	b := roaring.New()
	return &rankScanner{marked: b, it: b.Iterator()}
}

// resetStart begins a new epoch at rank. Resetting to the current
// start is a no-op, which keeps re-entry on the same secondary entry
// from restarting the forward scan.
//
// The epoch iterator stays valid because mark is never called between
// an effective reset and the epoch's last next: marks happen only when
// the driver sits on an activating entry, and reaching one ends any
// drain epoch.
func (s *rankScanner) resetStart(rank uint32) {
	if rank == s.start {
		return
	}
	s.start = rank
	s.it = s.marked.Iterator()
	s.it.AdvanceIfNeeded(rank)
}

// mark sets the activation bit for rank. Idempotent; bits are never
// cleared.
func (s *rankScanner) mark(rank uint32) {
	s.marked.Add(rank)
}

// next returns the next active rank in the current epoch, or false
// when none remain at or after the cursor. It never wraps and never
// looks behind the epoch's start.
func (s *rankScanner) next() (uint32, bool) {
	if !s.it.HasNext() {
		return 0, false
	}
	return s.it.Next(), true
}
