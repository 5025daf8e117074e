package tree

import (
	"sort"

	"github.com/relfeat/engine/column"
)

// Candidate is a fit-time trial: Cond is the condition that would be
// stored in the tree if this candidate wins, and Satisfies tests one
// peripheral row against it. Candidates never outlive a single Grow
// call — only the winning Cond is kept.
type Candidate struct {
	Cond      Condition
	Satisfies func(peripheralRow int) bool
}

// CategoricalEqualityCandidates yields one candidate per distinct code
// observed in col (condition kind 1).
func CategoricalEqualityCandidates(columnIndex int, col *column.Code) []Candidate {
	seen := make(map[int32]bool)
	var out []Candidate
	data := col.Data()
	for _, code := range data {
		if column.IsNullCode(code) || seen[code] {
			continue
		}
		seen[code] = true
		code := code
		out = append(out, Candidate{
			Cond:      Condition{Kind: CategoricalEquality, ColumnIndex: columnIndex, Category: code},
			Satisfies: func(row int) bool { return data[row] == code },
		})
	}
	return out
}

// CategoricalSetMembershipCandidates yields one candidate per pair of
// distinct codes (condition kind 2), bounded by maxCodes most frequent
// categories to keep the catalog finite for high-cardinality columns.
func CategoricalSetMembershipCandidates(columnIndex int, col *column.Code, maxCodes int) []Candidate {
	counts := make(map[int32]int)
	data := col.Data()
	for _, code := range data {
		if !column.IsNullCode(code) {
			counts[code]++
		}
	}
	codes := make([]int32, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return counts[codes[i]] > counts[codes[j]] })
	if len(codes) > maxCodes {
		codes = codes[:maxCodes]
	}

	var out []Candidate
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			set := []int32{codes[i], codes[j]}
			out = append(out, Candidate{
				Cond:      Condition{Kind: CategoricalSetMembership, ColumnIndex: columnIndex, Categories: set},
				Satisfies: func(row int) bool { return data[row] == set[0] || data[row] == set[1] },
			})
		}
	}
	return out
}

// NumericalThresholdCandidates yields one candidate per quantile of
// col's non-null values (condition kind 3), the "grid of candidate
// thresholds derived from quantiles" spec.md calls for.
func NumericalThresholdCandidates(columnIndex int, col *column.Float, quantiles []float64) []Candidate {
	data := col.Data()
	vals := make([]float64, 0, len(data))
	for _, v := range data {
		if !column.IsNullFloat(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)

	var out []Candidate
	seen := make(map[float64]bool)
	for _, q := range quantiles {
		t := quantileOf(vals, q)
		if seen[t] {
			continue
		}
		seen[t] = true
		threshold := t
		out = append(out, Candidate{
			Cond:      Condition{Kind: NumericalThreshold, ColumnIndex: columnIndex, Threshold: threshold},
			Satisfies: func(row int) bool { v := data[row]; return !column.IsNullFloat(v) && v > threshold },
		})
	}
	return out
}

func quantileOf(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SortedPositionsByValue returns peripheral row indices sorted ascending
// by col's value, for the matchmaker's sorted-input contract and for
// streaming numerical-threshold evaluation.
func SortedPositionsByValue(col *column.Float) []int {
	data := col.Data()
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return data[idx[i]] < data[idx[j]] })
	return idx
}

// SameUnitsEqualityCandidates yields one candidate testing
// perCol[row] == popValue for a pair of columns declared to share a
// unit (condition kind 4). popValue is supplied per population row at
// evaluation time by the caller; the candidate only needs perCol.
func SameUnitsEqualityCandidates(perColumnIndex, popColumnIndex int, perCol *column.Float, popValue func() float64) Candidate {
	data := perCol.Data()
	return Candidate{
		Cond: Condition{Kind: SameUnitsEquality, ColumnIndex: perColumnIndex, OtherColumnIndex: popColumnIndex},
		Satisfies: func(row int) bool {
			return !column.IsNullFloat(data[row]) && data[row] == popValue()
		},
	}
}

// SameUnitsDifferenceThresholdCandidates yields one candidate per
// threshold testing |perCol[row] - popValue| > threshold (condition
// kind 5).
func SameUnitsDifferenceThresholdCandidates(perColumnIndex, popColumnIndex int, perCol *column.Float, popValue func() float64, thresholds []float64) []Candidate {
	data := perCol.Data()
	var out []Candidate
	for _, th := range thresholds {
		threshold := th
		out = append(out, Candidate{
			Cond: Condition{Kind: SameUnitsDifferenceThreshold, ColumnIndex: perColumnIndex, OtherColumnIndex: popColumnIndex, Threshold: threshold},
			Satisfies: func(row int) bool {
				v := data[row]
				if column.IsNullFloat(v) {
					return false
				}
				d := v - popValue()
				if d < 0 {
					d = -d
				}
				return d > threshold
			},
		})
	}
	return out
}

// TimestampDiffThresholdCandidates yields one candidate per threshold
// testing popTS() - perTS[row] <= threshold (condition kind 6).
func TimestampDiffThresholdCandidates(perColumnIndex, popColumnIndex int, perTS *column.Float, popTS func() float64, thresholds []float64) []Candidate {
	data := perTS.Data()
	var out []Candidate
	for _, th := range thresholds {
		threshold := th
		out = append(out, Candidate{
			Cond: Condition{Kind: TimestampDiffThreshold, ColumnIndex: perColumnIndex, OtherColumnIndex: popColumnIndex, Threshold: threshold},
			Satisfies: func(row int) bool {
				v := data[row]
				return !column.IsNullFloat(v) && popTS()-v <= threshold
			},
		})
	}
	return out
}

// TextTokenPresenceCandidates yields one candidate per token in an
// inverted index (token -> sorted rows carrying it), condition kind 7.
// maxTokens bounds catalog size for high-cardinality vocabularies.
func TextTokenPresenceCandidates(columnIndex int, invertedIndex map[string][]int, maxTokens int) []Candidate {
	tokens := make([]string, 0, len(invertedIndex))
	for t := range invertedIndex {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return len(invertedIndex[tokens[i]]) > len(invertedIndex[tokens[j]]) })
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	var out []Candidate
	for _, tok := range tokens {
		rows := invertedIndex[tok]
		set := make(map[int]struct{}, len(rows))
		for _, r := range rows {
			set[r] = struct{}{}
		}
		token := tok
		out = append(out, Candidate{
			Cond: Condition{Kind: TextTokenPresence, ColumnIndex: columnIndex, Token: token},
			Satisfies: func(row int) bool {
				_, ok := set[row]
				return ok
			},
		})
	}
	return out
}
