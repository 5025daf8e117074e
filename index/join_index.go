// Package index implements the join index (C3), the time-window index
// (C4), and the active-set Sigma (C6's capability substrate) used by
// the matchmaker and the aggregation kernel.
package index

import "github.com/relfeat/engine/column"

// JoinIndex maps a join-key code to the sorted row numbers carrying
// that code, built in one O(N+K) pass over a join-key column (N rows,
// K distinct codes). Lookups are O(1) map access plus O(1) slice
// return — the index itself does no further work per query.
type JoinIndex struct {
	buckets map[int32][]int
}

// BuildJoinIndex builds an index over col, a Categorical/JoinKey
// column. Rows with a null key (column.NullCode) contribute to no
// bucket, matching the matchmaker's "a row with null key contributes to
// no match" edge case.
func BuildJoinIndex(col *column.Code) *JoinIndex {
	idx := &JoinIndex{buckets: make(map[int32][]int)}
	data := col.Data()
	for row, code := range data {
		if column.IsNullCode(code) {
			continue
		}
		idx.buckets[code] = append(idx.buckets[code], row)
	}
	return idx
}

// Rows returns the sorted row numbers carrying key, or nil if key was
// never seen (including column.NullCode, which never has a bucket).
func (idx *JoinIndex) Rows(key int32) []int {
	return idx.buckets[key]
}

// Len returns the number of distinct non-null keys indexed.
func (idx *JoinIndex) Len() int {
	return len(idx.buckets)
}
