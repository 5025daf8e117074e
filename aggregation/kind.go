// Package aggregation implements the aggregation kernel (C6): the
// incremental eta1/eta2 running-statistic machine the splitter (C7)
// drives through activate/deactivate moves, plus the 43 named
// aggregation functions (§4.4) evaluated over it.
package aggregation

// Kind names one of the aggregation functions a feature may use.
type Kind int

const (
	AVG Kind = iota
	AvgTimeBetween
	Count
	CountAboveMean
	CountBelowMean
	CountDistinct
	CountMinusCountDistinct
	CountDistinctOverCount
	Ewma1S
	Ewma1M
	Ewma1H
	Ewma1D
	Ewma7D
	Ewma30D
	Ewma90D
	Ewma365D
	First
	Last
	Kurtosis
	Max
	Median
	Min
	Mode
	NumMax
	NumMin
	Q1
	Q5
	Q10
	Q25
	Q75
	Q90
	Q95
	Q99
	Skew
	Sum
	StdDev
	TimeSinceFirstMaximum
	TimeSinceFirstMinimum
	TimeSinceLastMaximum
	TimeSinceLastMinimum
	Trend
	Var
	VariationCoefficient
)

var kindNames = map[Kind]string{
	AVG: "AVG", AvgTimeBetween: "AVG_TIME_BETWEEN", Count: "COUNT",
	CountAboveMean: "COUNT_ABOVE_MEAN", CountBelowMean: "COUNT_BELOW_MEAN",
	CountDistinct: "COUNT_DISTINCT", CountMinusCountDistinct: "COUNT_MINUS_COUNT_DISTINCT",
	CountDistinctOverCount: "COUNT_DISTINCT_OVER_COUNT",
	Ewma1S:                 "EWMA_1S", Ewma1M: "EWMA_1M", Ewma1H: "EWMA_1H", Ewma1D: "EWMA_1D",
	Ewma7D: "EWMA_7D", Ewma30D: "EWMA_30D", Ewma90D: "EWMA_90D", Ewma365D: "EWMA_365D",
	First: "FIRST", Last: "LAST", Kurtosis: "KURTOSIS", Max: "MAX", Median: "MEDIAN",
	Min: "MIN", Mode: "MODE", NumMax: "NUM_MAX", NumMin: "NUM_MIN",
	Q1: "Q1", Q5: "Q5", Q10: "Q10", Q25: "Q25", Q75: "Q75", Q90: "Q90", Q95: "Q95", Q99: "Q99",
	Skew: "SKEW", Sum: "SUM", StdDev: "STDDEV",
	TimeSinceFirstMaximum: "TIME_SINCE_FIRST_MAXIMUM", TimeSinceFirstMinimum: "TIME_SINCE_FIRST_MINIMUM",
	TimeSinceLastMaximum: "TIME_SINCE_LAST_MAXIMUM", TimeSinceLastMinimum: "TIME_SINCE_LAST_MINIMUM",
	Trend: "TREND", Var: "VAR", VariationCoefficient: "VARIATION_COEFFICIENT",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// ewmaHalfLife maps the EWMA_* suffix to its half-life in seconds. The
// decay weight for a row at age a seconds is 0.5^(a/halfLife).
var ewmaHalfLife = map[Kind]float64{
	Ewma1S: 1, Ewma1M: 60, Ewma1H: 3600, Ewma1D: 86400,
	Ewma7D: 7 * 86400, Ewma30D: 30 * 86400, Ewma90D: 90 * 86400, Ewma365D: 365 * 86400,
}

// RequiresTimestamps reports whether kind needs the peripheral row's
// timestamp column in addition to its value column.
func (k Kind) RequiresTimestamps() bool {
	switch k {
	case AvgTimeBetween, First, Last, Trend,
		TimeSinceFirstMaximum, TimeSinceFirstMinimum, TimeSinceLastMaximum, TimeSinceLastMinimum:
		return true
	default:
		_, ewma := ewmaHalfLife[k]
		return ewma
	}
}

// RequiresSortedInput reports whether the matchmaker must hand this
// aggregation matches pre-sorted by value (§4.3's "aggregations that
// require sorted input declare so in their capability set").
func (k Kind) RequiresSortedInput() bool {
	switch k {
	case Median, Q1, Q5, Q10, Q25, Q75, Q90, Q95, Q99:
		return true
	default:
		return false
	}
}

// quantileP returns the requested quantile's fraction in [0,1] for the
// Q* kinds, and whether kind is a quantile kind at all.
func quantileP(k Kind) (float64, bool) {
	switch k {
	case Q1:
		return 0.01, true
	case Q5:
		return 0.05, true
	case Q10:
		return 0.10, true
	case Q25:
		return 0.25, true
	case Median:
		return 0.50, true
	case Q75:
		return 0.75, true
	case Q90:
		return 0.90, true
	case Q95:
		return 0.95, true
	case Q99:
		return 0.99, true
	default:
		return 0, false
	}
}
