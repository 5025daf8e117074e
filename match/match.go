// Package match implements the matchmaker (C5): for one population row,
// produce the ordered sequence of peripheral rows satisfying join-key
// equality plus an optional temporal window.
package match

import (
	"sort"
	"sync"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/index"
	"github.com/relfeat/engine/placeholder"
)

// Match pairs one population row with one peripheral row.
type Match struct {
	IxOutput uint32
	IxInput  uint32
}

// Matchmaker produces matches for a single edge of a Placeholder. It
// holds whichever index (plain join, or join+time-window) the edge
// requires, built once and cached by the caller (the data model's "built
// lazily, cached on the frame").
type Matchmaker struct {
	joinIdx *index.JoinIndex       // used when the edge has no temporal window
	twIdx   *index.TimeWindowIndex // used when the edge has a temporal window
	popKey  *column.Code
	popTS   *column.Float // nil if the edge has no temporal window
	horizon float64
	oneToOne bool

	scratch sync.Pool // *[]Match, reused per goroutine to avoid per-row allocation
}

// NewKeyOnly builds a matchmaker for a pure key-equality edge (no
// temporal window): every peripheral row sharing the population row's
// join key is a match.
func NewKeyOnly(edge placeholder.Edge, popKey *column.Code, joinIdx *index.JoinIndex) *Matchmaker {
	return &Matchmaker{joinIdx: joinIdx, popKey: popKey, oneToOne: edge.Relationship == placeholder.OneToOne}
}

// NewTemporal builds a matchmaker for a key+time-window edge.
func NewTemporal(edge placeholder.Edge, popKey *column.Code, popTS *column.Float, twIdx *index.TimeWindowIndex) *Matchmaker {
	return &Matchmaker{
		twIdx:    twIdx,
		popKey:   popKey,
		popTS:    popTS,
		horizon:  edge.Horizon,
		oneToOne: edge.Relationship == placeholder.OneToOne,
	}
}

func (m *Matchmaker) buf() *[]Match {
	if v := m.scratch.Get(); v != nil {
		b := v.(*[]Match)
		*b = (*b)[:0]
		return b
	}
	b := make([]Match, 0, 64)
	return &b
}

// Release returns a scratch buffer obtained from Make back to the pool.
// Callers that need the result to outlive the current tree-growth call
// must copy it first — the buffer is reused the next time Make is
// called from the same goroutine.
func (m *Matchmaker) Release(buf []Match) {
	m.scratch.Put(&buf)
}

// Make returns the ordered matches for population row popRow. The
// returned slice is a pooled scratch buffer (see Release) unless the
// caller only reads it before the next Make call on the same
// Matchmaker from the same goroutine.
func (m *Matchmaker) Make(popRow int) []Match {
	bufPtr := m.buf()
	out := *bufPtr

	key := m.popKey.At(popRow)
	if column.IsNullCode(key) {
		*bufPtr = out
		return out
	}

	var rows []int
	if m.twIdx != nil {
		t := m.popTS.At(popRow)
		if column.IsNullFloat(t) {
			*bufPtr = out
			return out
		}
		rows = m.twIdx.Query(key, t+m.horizon)
		// Query orders by lowerTS; matches are ordered by row number.
		sort.Ints(rows)
	} else {
		rows = m.joinIdx.Rows(key)
	}

	if m.oneToOne && len(rows) > 1 {
		rows = rows[:1]
	}

	for _, r := range rows {
		out = append(out, Match{IxOutput: uint32(popRow), IxInput: uint32(r)})
	}
	*bufPtr = out
	return out
}

// SortByValue returns a copy of matches ordered by value ascending (or
// descending if desc is true), used when an aggregation capability (C6)
// declares it needs sorted input (e.g. numerical-threshold streaming,
// quantiles, MEDIAN). The matchmaker's default order (by
// IxInput) is otherwise preserved.
func SortByValue(matches []Match, value func(ixInput uint32) float64, desc bool) []Match {
	out := make([]Match, len(matches))
	copy(out, matches)
	less := func(i, j int) bool { return value(out[i].IxInput) < value(out[j].IxInput) }
	if desc {
		less = func(i, j int) bool { return value(out[i].IxInput) > value(out[j].IxInput) }
	}
	insertionSortMatches(out, less)
	return out
}

// insertionSortMatches is used instead of sort.Slice for small inputs to
// avoid interface-call overhead in the hot splitter path; it falls back
// to sort.SliceStable for larger inputs.
func insertionSortMatches(m []Match, less func(i, j int) bool) {
	if len(m) > 64 {
		sort.SliceStable(m, less)
		return
	}
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}
