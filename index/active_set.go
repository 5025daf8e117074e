package index

import (
	"github.com/pilosa/pilosa/v2/roaring"
)

// ActiveSet is Sigma (§3): the set of match indices currently
// contributing to an aggregation's running statistic. Backed by a
// roaring bitmap (pilosa's, a direct teacher dependency) rather than a
// hand-rolled bitset, since match density can reach 10^4-10^6 per
// population row and a compressed bitmap keeps both the set itself and
// its revert journal cheap.
//
// Every mutating call optionally journals what it changed; Commit
// clears the journal (the new state becomes the baseline) and
// RevertToCommit replays the journal in reverse to restore it, giving
// O(|changed|) rollback instead of a full recompute.
type ActiveSet struct {
	bm      *roaring.Bitmap
	journal []journalEntry
}

type journalEntry struct {
	added   []uint64
	removed []uint64
}

// NewActiveSet creates an empty active set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{bm: roaring.NewBitmap()}
}

// ActivateAll marks every index in [0,n) active and clears the journal
// — this is always a checkpoint boundary, matching the capability set's
// activate_all semantics.
func (a *ActiveSet) ActivateAll(n int) {
	a.bm = roaring.NewBitmap()
	for i := 0; i < n; i++ {
		a.bm.Add(uint64(i))
	}
	a.journal = a.journal[:0]
}

// DeactivateAll clears every index and the journal.
func (a *ActiveSet) DeactivateAll() {
	a.bm = roaring.NewBitmap()
	a.journal = a.journal[:0]
}

// Contains reports whether i is currently active.
func (a *ActiveSet) Contains(i int) bool {
	return a.bm.Contains(uint64(i))
}

// Activate marks every index in indices active. If revert is true, the
// change is journaled so a later RevertToCommit can undo exactly this
// call (and nothing committed before it).
func (a *ActiveSet) Activate(indices []int, revert bool) {
	var added []uint64
	for _, i := range indices {
		u := uint64(i)
		if !a.bm.Contains(u) {
			a.bm.Add(u)
			added = append(added, u)
		}
	}
	if revert && len(added) > 0 {
		a.journal = append(a.journal, journalEntry{added: added})
	}
}

// Deactivate marks every index in indices inactive, journaling as
// Activate does.
func (a *ActiveSet) Deactivate(indices []int, revert bool) {
	var removed []uint64
	for _, i := range indices {
		u := uint64(i)
		if a.bm.Contains(u) {
			a.bm.Remove(u)
			removed = append(removed, u)
		}
	}
	if revert && len(removed) > 0 {
		a.journal = append(a.journal, journalEntry{removed: removed})
	}
}

// Commit establishes the current active set as the new baseline: the
// journal is discarded, so a future RevertToCommit only undoes changes
// made after this point. Every successful split calls Commit (§4.4).
func (a *ActiveSet) Commit() {
	a.journal = a.journal[:0]
}

// RevertToCommit undoes every journaled change since the last Commit,
// in LIFO order, restoring exactly the baseline active set.
func (a *ActiveSet) RevertToCommit() {
	for i := len(a.journal) - 1; i >= 0; i-- {
		e := a.journal[i]
		for _, u := range e.added {
			a.bm.Remove(u)
		}
		for _, u := range e.removed {
			a.bm.Add(u)
		}
	}
	a.journal = a.journal[:0]
}

// Slice returns the active indices in ascending order.
func (a *ActiveSet) Slice() []int {
	vals := a.bm.Slice()
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

// Count returns the number of active indices.
func (a *ActiveSet) Count() int {
	return int(a.bm.Count())
}

// Clone returns an independent copy sharing no journal or bitmap state
// with a — used when a splitter needs to fork the active set to try two
// mutually exclusive candidate conditions from the same baseline.
func (a *ActiveSet) Clone() *ActiveSet {
	return &ActiveSet{bm: a.bm.Clone()}
}
