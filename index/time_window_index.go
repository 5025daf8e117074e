package index

import (
	"math"
	"sort"

	"github.com/relfeat/engine/column"
)

// twRow is one peripheral row's window, grouped by join-key code.
type twRow struct {
	row     int
	lowerTS float64
	upperTS float64 // +Inf when unbounded
}

// TimeWindowIndex answers, for (joinKeyCode, queryTS), the peripheral
// rows whose [lowerTS, upperTS) window contains queryTS, subject to a
// memory bound that prunes rows whose lowerTS+memory < queryTS (C4).
// Groups are sorted by lowerTS ascending so both the binary search for
// the window boundary and the memory-bound early exit are possible.
type TimeWindowIndex struct {
	groups map[int32][]twRow
	memory float64
}

// Build constructs a TimeWindowIndex over a peripheral frame's join-key,
// lower-timestamp and (optional, may be nil) upper-timestamp columns.
// memory is the edge's memory bound in seconds (index.NoMemory for
// unbounded). Rows with a null key or null lower timestamp are excluded
// per the matchmaker's null-key/null-lower_ts edge cases.
func Build(key *column.Code, lower *column.Float, upper *column.Float, memory float64) *TimeWindowIndex {
	idx := &TimeWindowIndex{groups: make(map[int32][]twRow), memory: memory}

	keys := key.Data()
	lowers := lower.Data()
	var uppers []float64
	if upper != nil {
		uppers = upper.Data()
	}

	for row, code := range keys {
		if column.IsNullCode(code) {
			continue
		}
		lo := lowers[row]
		if column.IsNullFloat(lo) {
			continue
		}
		var hi float64
		switch {
		case upper != nil && !column.IsNullFloat(uppers[row]):
			hi = uppers[row]
		case memory == NoMemory:
			hi = math.Inf(1)
		default:
			hi = lo + memory
		}
		idx.groups[code] = append(idx.groups[code], twRow{row: row, lowerTS: lo, upperTS: hi})
	}

	for _, g := range idx.groups {
		sort.Slice(g, func(i, j int) bool { return g[i].lowerTS < g[j].lowerTS })
	}
	return idx
}

// NoMemory re-exports placeholder.NoMemory's value so callers don't need
// to import placeholder just to pass an unbounded memory to Build.
const NoMemory = math.MaxFloat64

// Query returns the row numbers whose window contains t, for the given
// join-key code. Ordered by lowerTS ascending; Matchmaker.Make re-sorts
// the rows by row number.
func (idx *TimeWindowIndex) Query(key int32, t float64) []int {
	group := idx.groups[key]
	if len(group) == 0 {
		return nil
	}

	// largest index with lowerTS <= t
	boundary := sort.Search(len(group), func(i int) bool { return group[i].lowerTS > t }) - 1
	if boundary < 0 {
		return nil
	}

	var out []int
	for i := boundary; i >= 0; i-- {
		r := group[i]
		if idx.memory != NoMemory && r.lowerTS+idx.memory < t {
			break // every earlier row has an even smaller lowerTS+memory
		}
		// upper is open: [lower, upper)
		if t < r.upperTS {
			out = append(out, r.row)
		}
	}
	// reverse to restore ascending-by-lowerTS order
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
