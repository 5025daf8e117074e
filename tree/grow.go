package tree

import (
	"sort"

	"github.com/relfeat/engine/aggregation"
	"github.com/relfeat/engine/loss"
)

// RowMatches is one population row's peripheral rows still eligible at
// the current node (the conjunction of every ancestor condition already
// holds for each of them).
type RowMatches struct {
	PopRow     int
	Peripheral []int
}

// Params bundles the regularization and stop-condition knobs (§4.5).
type Params struct {
	Shrinkage      float64
	MinLeafSupport int
	MaxDepth       int
	MaxLength      int
	Epsilon        float64
}

// DefaultParams returns getML-compatible defaults.
func DefaultParams() Params {
	return Params{Shrinkage: 1.0, MinLeafSupport: 1, MaxDepth: 6, MaxLength: 6, Epsilon: 1e-9}
}

// Grow recursively splits matches using candidates, aggregating the
// value column additively (SUM semantics: a population row's feature is
// the sum of values over its eligible peripheral rows satisfying the
// path so far) and solving each candidate's weights via l. g and h are
// per-population-row loss gradients/hessians at the tree's current
// residual, held fixed for the whole growth of one tree (§4.7: weights
// are found per node, gradients are computed once per tree).
//
// The values slice is indexed by peripheral row (aligned with every
// Candidate's Satisfies closure); g and h are indexed by position in
// matches, not by population row id. The second return value is the
// subtree's total loss reduction relative to predicting 0 for every
// row (the sum of EvaluateLeaf over every leaf below it, since leaves
// partition the population rows disjointly) — the quantity
// ensemble.Fit compares across candidate root placeholders (§4.7),
// not the magnitude of the tree's prediction.
func Grow(matches []RowMatches, values []float64, g, h []float64, candidates []Candidate, l loss.Loss, params Params, depth, length int) (*Node, float64) {
	feature := sumPeripheral(matches, values)
	sumG, sumH := sumGH(feature, g, h)
	leafWeight := l.CalcWeight(sumG, sumH)
	leafReduction := l.EvaluateLeaf(sumG, sumH)

	if depth >= params.MaxDepth || length >= params.MaxLength || len(candidates) == 0 {
		return NewLeaf(leafWeight), leafReduction
	}

	best, bestReduction, bestIndex, matchSplit := searchBest(matches, values, g, h, candidates, l, params)
	if best == nil || bestReduction <= params.Epsilon {
		return NewLeaf(leafWeight), leafReduction
	}

	matchMatches, noMatchMatches := matchSplit()
	remaining := removeCandidateAt(candidates, bestIndex)

	matchSide, matchReduction := Grow(matchMatches, values, g, h, remaining, l, params, depth+1, length+1)
	noMatchSide, noMatchReduction := Grow(noMatchMatches, values, g, h, remaining, l, params, depth+1, length+1)
	return NewSplit(best, matchSide, noMatchSide), matchReduction + noMatchReduction
}

func sumPeripheral(matches []RowMatches, values []float64) []float64 {
	feature := make([]float64, len(matches))
	for i, rm := range matches {
		var sum float64
		for _, p := range rm.Peripheral {
			sum += values[p]
		}
		feature[i] = sum
	}
	return feature
}

// sumGH linearizes a feature vector (one value per row in matches/g/h)
// through the SUM aggregation via the delta method: sumG = Σ
// g_i*feature_i, sumH = Σ h_i*feature_i².
func sumGH(feature, g, h []float64) (sumG, sumH float64) {
	for i, f := range feature {
		sumG += g[i] * f
		sumH += h[i] * f * f
	}
	return sumG, sumH
}

// rowKernel pairs one population row's C6 aggregation kernel with the
// local<->global position mapping searchBest needs to translate kernel
// positions back into peripheral row indices, plus that row's fixed
// gradient/hessian for the tree being grown.
type rowKernel struct {
	kernel *aggregation.Kernel
	global []int // local kernel position -> peripheral row index
	popRow int
	g, h   float64
}

// chainDirection reports whether consecutive candidates of kind form a
// monotonic threshold chain once sorted ascending by threshold, and
// which way the satisfying set moves as the threshold increases.
// NumericalThreshold and SameUnitsDifferenceThreshold both test
// "distance > threshold": raising the threshold only ever removes rows
// from the satisfying set (shrinking=true). TimestampDiffThreshold
// tests "gap <= threshold": raising it only ever adds rows
// (shrinking=false).
func chainDirection(kind ConditionKind) (chainable, shrinking bool) {
	switch kind {
	case NumericalThreshold, SameUnitsDifferenceThreshold:
		return true, true
	case TimestampDiffThreshold:
		return true, false
	default:
		return false, false
	}
}

// searchBest tries every candidate in search-order (categorical →
// numerical → same-units → timestamp-diff → text), computing each
// side's closed-form weight and loss reduction through C6's incremental
// aggregation kernel rather than rescanning every peripheral row from
// scratch for every candidate. A run of same-column threshold
// candidates (already sorted ascending by searchBest's tie-break order)
// is evaluated as one chain that streams matches between eta1 and eta2
// one at a time as the threshold sweeps, per §4.5's "moved one-by-one
// ... amortized O(1)" protocol; every other candidate still goes
// through the kernel's Activate/Eval/Commit cycle, just without
// cross-candidate reuse. Returns the winning condition, its loss
// reduction, its index in candidates, and a thunk partitioning matches
// along it.
func searchBest(matches []RowMatches, values, g, h []float64, candidates []Candidate, l loss.Loss, params Params) (*Condition, float64, int, func() ([]RowMatches, []RowMatches)) {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oi, ci, vi := candidates[order[a]].Cond.tieBreakKey()
		oj, cj, vj := candidates[order[b]].Cond.tieBreakKey()
		if oi != oj {
			return oi < oj
		}
		if ci != cj {
			return ci < cj
		}
		return vi < vj
	})

	rows := make([]*rowKernel, len(matches))
	for r, rm := range matches {
		k := aggregation.NewKernel(selectValues(values, rm.Peripheral), nil)
		k.ActivateAll()
		rows[r] = &rowKernel{kernel: k, global: rm.Peripheral, popRow: rm.PopRow, g: g[r], h: h[r]}
	}

	var bestCond *Condition
	var bestReduction float64
	var bestIndex = -1
	var bestSplit func() ([]RowMatches, []RowMatches)

	i := 0
	for i < len(order) {
		kind := candidates[order[i]].Cond.Kind
		col := candidates[order[i]].Cond.ColumnIndex
		chainable, shrinking := chainDirection(kind)

		end := i + 1
		if chainable {
			for end < len(order) {
				next := candidates[order[end]].Cond
				if next.Kind != kind || next.ColumnIndex != col {
					break
				}
				end++
			}
		}

		cond, reduction, cIdx := evalChain(rows, candidates, order[i:end], chainable, shrinking, l, params)
		if cond != nil && (bestCond == nil || reduction > bestReduction) {
			bestCond, bestReduction, bestIndex = cond, reduction, cIdx
			winner := candidates[cIdx].Satisfies
			bestSplit = func() ([]RowMatches, []RowMatches) { return partitionMatches(matches, winner) }
		}

		for _, rk := range rows {
			rk.kernel.ActivateAll()
		}
		i = end
	}
	return bestCond, bestReduction, bestIndex, bestSplit
}

// evalChain evaluates every candidate index in chainOrder against rows,
// reusing each row's kernel state between consecutive thresholds
// (when chainable) instead of reactivating every position from scratch.
func evalChain(rows []*rowKernel, candidates []Candidate, chainOrder []int, chainable, shrinking bool, l loss.Loss, params Params) (*Condition, float64, int) {
	var bestCond *Condition
	var bestReduction float64
	bestIndex := -1

	for step, idx := range chainOrder {
		cand := candidates[idx]

		for _, rk := range rows {
			switch {
			case !chainable || step == 0:
				// First candidate in the chain (or any non-chainable
				// candidate): test every position once against the
				// full baseline eta1 already established by ActivateAll.
				var toDeactivate []int
				for _, localPos := range rk.kernel.ActivePositions() {
					if !cand.Satisfies(rk.global[localPos]) {
						toDeactivate = append(toDeactivate, localPos)
					}
				}
				rk.kernel.Deactivate(toDeactivate, false)
			case shrinking:
				// Threshold only grew and satisfaction only shrinks:
				// re-test the currently-active set alone.
				var toDeactivate []int
				for _, localPos := range rk.kernel.ActivePositions() {
					if !cand.Satisfies(rk.global[localPos]) {
						toDeactivate = append(toDeactivate, localPos)
					}
				}
				rk.kernel.Deactivate(toDeactivate, false)
			default:
				// Threshold only grew and satisfaction only
				// accumulates: re-test the currently-inactive set alone.
				var toActivate []int
				for _, localPos := range rk.kernel.InactivePositions() {
					if cand.Satisfies(rk.global[localPos]) {
						toActivate = append(toActivate, localPos)
					}
				}
				rk.kernel.Activate(toActivate, false)
			}
			rk.kernel.Commit()
		}

		var sumG1, sumH1, sumG2, sumH2 float64
		n1, n2 := 0, 0
		for _, rk := range rows {
			s1, s2 := rk.kernel.Eval(aggregation.Sum)
			sumG1 += rk.g * s1
			sumH1 += rk.h * s1 * s1
			sumG2 += rk.g * s2
			sumH2 += rk.h * s2 * s2
			if s1 != 0 {
				n1++
			}
			if s2 != 0 {
				n2++
			}
		}
		if n1 < params.MinLeafSupport || n2 < params.MinLeafSupport {
			continue
		}

		w1 := l.CalcWeight(sumG1, sumH1)
		w2 := l.CalcWeight(sumG2, sumH2)
		reduction := l.EvaluateSplit(sumG1, sumH1, w1, sumG2, sumH2, w2)
		if bestCond == nil || reduction > bestReduction {
			cond := cand.Cond
			bestCond = &cond
			bestReduction = reduction
			bestIndex = idx
		}
	}
	return bestCond, bestReduction, bestIndex
}

func partitionMatches(matches []RowMatches, satisfies func(int) bool) (matchSide, noMatchSide []RowMatches) {
	for _, rm := range matches {
		var m, nm []int
		for _, p := range rm.Peripheral {
			if satisfies(p) {
				m = append(m, p)
			} else {
				nm = append(nm, p)
			}
		}
		matchSide = append(matchSide, RowMatches{PopRow: rm.PopRow, Peripheral: m})
		noMatchSide = append(noMatchSide, RowMatches{PopRow: rm.PopRow, Peripheral: nm})
	}
	return matchSide, noMatchSide
}

func selectValues(values []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = values[p]
	}
	return out
}

func removeCandidateAt(candidates []Candidate, index int) []Candidate {
	out := make([]Candidate, 0, len(candidates)-1)
	out = append(out, candidates[:index]...)
	out = append(out, candidates[index+1:]...)
	return out
}
