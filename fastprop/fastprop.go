// Package fastprop implements the FastProp enumerator (C11): a catalog
// of (aggregation, column, optional condition) tuples materialized in
// one unboosted pass over the matches, per §4.9.
package fastprop

import (
	"fmt"
	"math"

	"github.com/relfeat/engine/aggregation"
	"github.com/relfeat/engine/match"
)

// Feature names one cataloged (aggregation, column, optional condition)
// tuple. ConditionLabel is "" for the unconditioned feature.
type Feature struct {
	PeripheralTable string
	Column          string
	Kind            aggregation.Kind
	ConditionLabel  string
}

// Name returns the feature's catalog identifier, stable across fit and
// transform — used as the output column name and, in deploy, as the
// generated table name.
func (f Feature) Name() string {
	if f.ConditionLabel == "" {
		return fmt.Sprintf("%s__%s__%s", f.PeripheralTable, f.Kind, f.Column)
	}
	return fmt.Sprintf("%s__%s__%s__%s", f.PeripheralTable, f.Kind, f.Column, f.ConditionLabel)
}

// ColumnSource supplies everything the enumerator needs about one
// numerical peripheral column: its values (aligned to peripheral row
// index), optional timestamps (for time-dependent aggregations), and
// optional conditions each producing a label plus a row filter.
type ColumnSource struct {
	Table      string
	Column     string
	Values     []float64
	Timestamps []float64 // nil if no time-dependent aggregation applies
	Conditions []NamedCondition
}

// NamedCondition is one optional condition FastProp enumerates a
// feature for, in addition to the unconditioned aggregation.
type NamedCondition struct {
	Label  string
	Passes func(peripheralRow int) bool
}

// Kinds lists the aggregation kinds FastProp enumerates over; callers
// needing only a subset (e.g. excluding the EWMA family for very large
// catalogs) can filter before calling Enumerate.
var Kinds = []aggregation.Kind{
	aggregation.AVG, aggregation.Sum, aggregation.Count,
	aggregation.Min, aggregation.Max, aggregation.StdDev, aggregation.Var,
	aggregation.Median, aggregation.CountDistinct, aggregation.Mode,
	aggregation.Skew, aggregation.Kurtosis, aggregation.First, aggregation.Last,
	aggregation.Trend, aggregation.VariationCoefficient,
}

// Enumerate builds the full feature catalog for one peripheral table's
// columns: one Feature per (column, kind) pair, plus one per (column,
// kind, condition) for every declared NamedCondition, skipping
// time-dependent kinds on columns with no timestamps.
func Enumerate(sources []ColumnSource) []Feature {
	var out []Feature
	for _, src := range sources {
		for _, k := range Kinds {
			if k.RequiresTimestamps() && src.Timestamps == nil {
				continue
			}
			out = append(out, Feature{PeripheralTable: src.Table, Column: src.Column, Kind: k})
			for _, cond := range src.Conditions {
				out = append(out, Feature{PeripheralTable: src.Table, Column: src.Column, Kind: k, ConditionLabel: cond.Label})
			}
		}
	}
	return out
}

// Materialize computes every feature in catalog for every population
// row in one pass: for each row, matches are made once and each
// feature's kernel is built by filtering to its condition (if any)
// before evaluating eta1 (which, after ActivateAll, equals the full set
// — FastProp never splits, so only eta1's value is used).
func Materialize(catalog []Feature, sources []ColumnSource, numPopRows int, makeMatches func(popRow int) []match.Match) map[string][]float64 {
	bySource := make(map[string]ColumnSource, len(sources))
	for _, s := range sources {
		bySource[s.Table+"."+s.Column] = s
	}

	out := make(map[string][]float64, len(catalog))
	for _, f := range catalog {
		out[f.Name()] = make([]float64, numPopRows)
	}

	for popRow := 0; popRow < numPopRows; popRow++ {
		matches := makeMatches(popRow)
		peripheralRows := make([]int, len(matches))
		for i, m := range matches {
			peripheralRows[i] = int(m.IxInput)
		}

		for _, f := range catalog {
			src := bySource[f.PeripheralTable+"."+f.Column]
			values := valuesFor(src, peripheralRows, f.ConditionLabel)
			k := aggregation.NewKernel(values, timestampsFor(src, peripheralRows))
			k.ActivateAll()
			v, _ := k.Eval(f.Kind)
			out[f.Name()][popRow] = v
		}
	}
	return out
}

func valuesFor(src ColumnSource, peripheralRows []int, conditionLabel string) []float64 {
	var passes func(int) bool
	if conditionLabel != "" {
		for _, c := range src.Conditions {
			if c.Label == conditionLabel {
				passes = c.Passes
				break
			}
		}
	}
	out := make([]float64, len(peripheralRows))
	for i, r := range peripheralRows {
		if passes != nil && !passes(r) {
			out[i] = math.NaN()
			continue
		}
		out[i] = src.Values[r]
	}
	return out
}

func timestampsFor(src ColumnSource, peripheralRows []int) []float64 {
	if src.Timestamps == nil {
		return nil
	}
	out := make([]float64, len(peripheralRows))
	for i, r := range peripheralRows {
		out[i] = src.Timestamps[r]
	}
	return out
}
