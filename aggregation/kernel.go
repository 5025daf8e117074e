package aggregation

import (
	"math"
	"sort"

	"github.com/relfeat/engine/index"
)

// move records one position's eta1/eta2 transfer, so RevertToCommit can
// play the journal back in reverse. This mirrors index.ActiveSet's own
// journal, but pairs each bit flip with the sufficient-statistic update
// it caused — reverting the bitmap alone isn't enough to restore eta1
// and eta2.
type move struct {
	pos      int
	toActive bool
}

// Kernel is Sigma (§4.4): the per-population-row incremental aggregation
// state, built once per row from its matched peripheral values (and,
// for time-dependent kinds, timestamps) and driven by the splitter
// through activate/deactivate calls as it searches candidate splits.
type Kernel struct {
	values []float64 // NaN marks a null aggregated value
	ts     []float64 // nil if the aggregation needs no timestamps
	cats   []int32   // nil unless built via NewCategoricalKernel

	active  *index.ActiveSet // eta1 membership, by position in values/ts
	eta1    *state
	eta2    *state
	journal []move
}

// NewKernel builds a kernel over one population row's matched values
// (and, when the aggregation needs them, timestamps). NaN entries are
// never added to either side's statistics — ActivateAll marks their
// position active in the bitmap (so Slice/Count still see them) without
// contributing to eta1, matching "nulls ... deactivated up-front" once
// DeactivateSamplesWithNullValues is called.
func NewKernel(values []float64, ts []float64) *Kernel {
	return &Kernel{
		values: values,
		ts:     ts,
		active: index.NewActiveSet(),
		eta1:   newState(),
		eta2:   newState(),
	}
}

// NewCategoricalKernel is a kernel over categorical values (for
// COUNT_DISTINCT, MODE, COUNT_MINUS_COUNT_DISTINCT, etc. applied to a
// categorical column), with the codes also usable by
// ActivateSamplesContainingCategories.
func NewCategoricalKernel(cats []int32) *Kernel {
	values := make([]float64, len(cats))
	for i, c := range cats {
		values[i] = float64(c)
	}
	k := NewKernel(values, nil)
	k.cats = cats
	return k
}

func (k *Kernel) isNull(pos int) bool {
	return math.IsNaN(k.values[pos])
}

func (k *Kernel) recordMove(pos int, toActive bool) {
	k.journal = append(k.journal, move{pos: pos, toActive: toActive})
}

func (k *Kernel) setActive(pos int) {
	if k.active.Contains(pos) {
		return
	}
	k.active.Activate([]int{pos}, false)
	if !k.isNull(pos) {
		k.eta2.remove(k.values[pos])
		k.eta1.add(k.values[pos])
	}
}

func (k *Kernel) setInactive(pos int) {
	if !k.active.Contains(pos) {
		return
	}
	k.active.Deactivate([]int{pos}, false)
	if !k.isNull(pos) {
		k.eta1.remove(k.values[pos])
		k.eta2.add(k.values[pos])
	}
}

// ActivateAll marks every row active-for-this-split (eta1 = full set,
// eta2 = empty) and clears the journal — always a checkpoint.
func (k *Kernel) ActivateAll() {
	k.active.ActivateAll(len(k.values))
	k.eta1 = newState()
	k.eta2 = newState()
	for _, v := range k.values {
		if !math.IsNaN(v) {
			k.eta1.add(v)
		}
	}
	k.journal = k.journal[:0]
}

// DeactivateSamplesWithNullValues moves every currently-active
// null-valued position to eta2. Null values never entered eta1's
// statistics in the first place (see setActive), so this only needs to
// update the bitmap and journal.
func (k *Kernel) DeactivateSamplesWithNullValues(revert bool) {
	var moved []int
	for pos := range k.values {
		if k.isNull(pos) && k.active.Contains(pos) {
			moved = append(moved, pos)
		}
	}
	k.Deactivate(moved, revert)
}

// ActivateSamplesContainingCategories activates every position whose
// category code is in cats (kernel must have been built via
// NewCategoricalKernel or over a column whose float-encoded values are
// category codes).
func (k *Kernel) ActivateSamplesContainingCategories(cats []int32, revert bool) {
	set := make(map[int32]struct{}, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	var positions []int
	for pos, c := range k.cats {
		if _, ok := set[c]; ok {
			positions = append(positions, pos)
		}
	}
	k.Activate(positions, revert)
}

// ActivateSamplesNotContainingCategories is the symmetric complement.
func (k *Kernel) ActivateSamplesNotContainingCategories(cats []int32, revert bool) {
	set := make(map[int32]struct{}, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	var positions []int
	for pos, c := range k.cats {
		if _, ok := set[c]; !ok {
			positions = append(positions, pos)
		}
	}
	k.Activate(positions, revert)
}

// ActivateSamplesFromAbove activates every position whose value exceeds
// threshold. sortedPositions is the matchmaker-provided order (positions
// sorted ascending by value) required for aggregations that declare
// Kind.RequiresSortedInput.
func (k *Kernel) ActivateSamplesFromAbove(sortedPositions []int, threshold float64, revert bool) {
	var positions []int
	for i := len(sortedPositions) - 1; i >= 0; i-- {
		pos := sortedPositions[i]
		if k.isNull(pos) || k.values[pos] <= threshold {
			break
		}
		positions = append(positions, pos)
	}
	k.Activate(positions, revert)
}

// ActivateSamplesFromBelow is the symmetric complement.
func (k *Kernel) ActivateSamplesFromBelow(sortedPositions []int, threshold float64, revert bool) {
	var positions []int
	for _, pos := range sortedPositions {
		if k.isNull(pos) || k.values[pos] >= threshold {
			break
		}
		positions = append(positions, pos)
	}
	k.Activate(positions, revert)
}

// Activate moves positions into eta1.
func (k *Kernel) Activate(positions []int, revert bool) {
	for _, pos := range positions {
		if !k.active.Contains(pos) {
			k.setActive(pos)
			if revert {
				k.recordMove(pos, true)
			}
		}
	}
}

// Deactivate moves positions into eta2.
func (k *Kernel) Deactivate(positions []int, revert bool) {
	for _, pos := range positions {
		if k.active.Contains(pos) {
			k.setInactive(pos)
			if revert {
				k.recordMove(pos, false)
			}
		}
	}
}

// Commit establishes the current (eta1, eta2) as the new baseline: the
// journal is discarded.
func (k *Kernel) Commit() {
	k.journal = k.journal[:0]
}

// RevertToCommit undoes every journaled move since the last Commit, in
// LIFO order, restoring the baseline (eta1, eta2).
func (k *Kernel) RevertToCommit() {
	for i := len(k.journal) - 1; i >= 0; i-- {
		m := k.journal[i]
		if m.toActive {
			k.setInactive(m.pos)
		} else {
			k.setActive(m.pos)
		}
	}
	k.journal = k.journal[:0]
}

// UpdateAndClear evaluates kind on both sides and establishes the
// current state as the new baseline (the splitter has handed the
// resulting (yhat1, yhat2) to the loss function and moves on to the next
// candidate threshold without reverting this one).
func (k *Kernel) UpdateAndClear(kind Kind) (yhat1, yhat2 float64) {
	yhat1, yhat2 = k.Eval(kind)
	k.Commit()
	return
}

// Eval computes kind's value over eta1 (active-for-this-split matches)
// and eta2 (the complement).
func (k *Kernel) Eval(kind Kind) (eta1, eta2 float64) {
	if v1, ok := k.eta1.eval(kind); ok {
		v2, _ := k.eta2.eval(kind)
		return v1, v2
	}
	return k.evalOrderDependent(kind, true), k.evalOrderDependent(kind, false)
}

// evalOrderDependent handles the kinds that need the raw active row
// list in timestamp order rather than a commutative running statistic
// (§"REDESIGN FLAGS": the partial-vs-full recompute tradeoff here is a
// performance decision, not a semantic one — these always recompute).
func (k *Kernel) evalOrderDependent(kind Kind, wantActive bool) float64 {
	positions := k.positions(wantActive)
	if len(positions) == 0 {
		return math.NaN()
	}

	if halfLife, ok := ewmaHalfLife[kind]; ok {
		return k.ewma(positions, halfLife)
	}

	sort.Slice(positions, func(i, j int) bool { return k.ts[positions[i]] < k.ts[positions[j]] })

	switch kind {
	case First:
		return k.values[positions[0]]
	case Last:
		return k.values[positions[len(positions)-1]]
	case AvgTimeBetween:
		if len(positions) < 2 {
			return math.NaN()
		}
		var sum float64
		for i := 1; i < len(positions); i++ {
			sum += k.ts[positions[i]] - k.ts[positions[i-1]]
		}
		return sum / float64(len(positions)-1)
	case Trend:
		return linearSlope(k.ts, k.values, positions)
	case TimeSinceFirstMaximum, TimeSinceLastMaximum:
		return timeSinceExtreme(k.ts, k.values, positions, true, kind == TimeSinceLastMaximum)
	case TimeSinceFirstMinimum, TimeSinceLastMinimum:
		return timeSinceExtreme(k.ts, k.values, positions, false, kind == TimeSinceLastMinimum)
	default:
		return math.NaN()
	}
}

// ActivePositions returns every non-null position currently in eta1,
// for callers (the splitter's threshold-chain streaming) that need to
// re-test only the current membership rather than every position.
func (k *Kernel) ActivePositions() []int { return k.positions(true) }

// InactivePositions is ActivePositions' complement (eta2).
func (k *Kernel) InactivePositions() []int { return k.positions(false) }

func (k *Kernel) positions(active bool) []int {
	n := len(k.values)
	out := make([]int, 0, n)
	for pos := 0; pos < n; pos++ {
		if math.IsNaN(k.values[pos]) {
			continue
		}
		if k.active.Contains(pos) == active {
			out = append(out, pos)
		}
	}
	return out
}

func (k *Kernel) ewma(positions []int, halfLife float64) float64 {
	latest := k.ts[positions[0]]
	for _, pos := range positions {
		if k.ts[pos] > latest {
			latest = k.ts[pos]
		}
	}
	var num, den float64
	for _, pos := range positions {
		age := latest - k.ts[pos]
		w := math.Pow(0.5, age/halfLife)
		num += w * k.values[pos]
		den += w
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// linearSlope fits y = a + b*t by ordinary least squares over positions
// and returns b.
func linearSlope(ts, values []float64, positions []int) float64 {
	n := float64(len(positions))
	if n < 2 {
		return math.NaN()
	}
	var sumT, sumV, sumTT, sumTV float64
	for _, pos := range positions {
		t, v := ts[pos], values[pos]
		sumT += t
		sumV += v
		sumTT += t * t
		sumTV += t * v
	}
	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return math.NaN()
	}
	return (n*sumTV - sumT*sumV) / denom
}

// timeSinceExtreme returns the elapsed time between the last active
// timestamp and the first (or last) occurrence of the max (or min)
// value among positions, which must already be sorted by ts ascending.
func timeSinceExtreme(ts, values []float64, positions []int, wantMax, wantLastOccurrence bool) float64 {
	extremeIdx := 0
	for i, pos := range positions {
		v, cur := values[pos], values[positions[extremeIdx]]
		if (wantMax && v > cur) || (!wantMax && v < cur) {
			extremeIdx = i
		} else if v == cur && wantLastOccurrence {
			extremeIdx = i
		}
	}
	last := ts[positions[len(positions)-1]]
	return last - ts[positions[extremeIdx]]
}
