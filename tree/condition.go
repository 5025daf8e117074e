// Package tree implements the relational decision-tree splitter (C7)
// and the node/condition representation grown and walked by the
// boosting driver in package ensemble (C9).
package tree

// ConditionKind tags one of the 7 condition shapes the splitter tries.
// Per the tagged-variant-over-open-inheritance convention: evaluation is
// a function dispatched on the tag, never a virtual method hierarchy.
type ConditionKind int

const (
	CategoricalEquality ConditionKind = iota
	CategoricalSetMembership
	NumericalThreshold
	SameUnitsEquality
	SameUnitsDifferenceThreshold
	TimestampDiffThreshold
	TextTokenPresence
)

func (k ConditionKind) String() string {
	switch k {
	case CategoricalEquality:
		return "categorical_equality"
	case CategoricalSetMembership:
		return "categorical_set_membership"
	case NumericalThreshold:
		return "numerical_threshold"
	case SameUnitsEquality:
		return "same_units_equality"
	case SameUnitsDifferenceThreshold:
		return "same_units_difference_threshold"
	case TimestampDiffThreshold:
		return "timestamp_diff_threshold"
	case TextTokenPresence:
		return "text_token_presence"
	default:
		return "unknown"
	}
}

// searchOrder fixes the splitter's traversal order (§4.5): categorical
// kinds first, then numerical, same-units, timestamp-diff, text last.
var searchOrder = map[ConditionKind]int{
	CategoricalEquality:          0,
	CategoricalSetMembership:     0,
	NumericalThreshold:           1,
	SameUnitsEquality:            2,
	SameUnitsDifferenceThreshold: 2,
	TimestampDiffThreshold:       3,
	TextTokenPresence:            4,
}

// Condition is the plain-data, serializable decision stored at a split
// node. Candidate (candidates.go) is its fit-time counterpart carrying a live
// evaluation closure; Condition itself only carries the parameters
// needed to replay the same test at transform time.
type Condition struct {
	Kind             ConditionKind
	ColumnIndex      int
	OtherColumnIndex int // population-side column for SameUnits*/TimestampDiff
	Category         int32
	Categories       []int32
	Threshold        float64
	Token            string
}

// SatisfiesCategory evaluates CategoricalEquality / CategoricalSetMembership.
func (c *Condition) SatisfiesCategory(code int32) bool {
	switch c.Kind {
	case CategoricalEquality:
		return code == c.Category
	case CategoricalSetMembership:
		for _, want := range c.Categories {
			if code == want {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SatisfiesNumeric evaluates NumericalThreshold: value > Threshold.
func (c *Condition) SatisfiesNumeric(value float64) bool {
	return value > c.Threshold
}

// SatisfiesSameUnitsEquality evaluates SameUnitsEquality between a
// peripheral and a population value of the matching unit.
func (c *Condition) SatisfiesSameUnitsEquality(peripheral, population float64) bool {
	return peripheral == population
}

// SatisfiesSameUnitsDifference evaluates
// SameUnitsDifferenceThreshold: |peripheral - population| > Threshold.
func (c *Condition) SatisfiesSameUnitsDifference(peripheral, population float64) bool {
	d := peripheral - population
	if d < 0 {
		d = -d
	}
	return d > c.Threshold
}

// SatisfiesTimestampDiff evaluates TimestampDiffThreshold:
// ts_popul - ts_perip <= Threshold.
func (c *Condition) SatisfiesTimestampDiff(popTS, perTS float64) bool {
	return popTS-perTS <= c.Threshold
}

// SatisfiesToken evaluates TextTokenPresence against a peripheral row's
// token set (from the inverted index, see candidates.go).
func (c *Condition) SatisfiesToken(hasToken bool) bool {
	return hasToken
}

// tieBreakKey returns the deterministic (kind-order, column-index,
// critical-value) triplet used to break ties among equally-good
// candidates, per §4.5.
func (c *Condition) tieBreakKey() (int, int, float64) {
	cv := c.Threshold
	if c.Kind == CategoricalEquality {
		cv = float64(c.Category)
	}
	return searchOrder[c.Kind], c.ColumnIndex, cv
}
