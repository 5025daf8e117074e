package tree

import (
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/loss"
	"github.com/stretchr/testify/require"
)

func TestGrowSplitsOnCategoricalEquality(t *testing.T) {
	// Two population rows, two peripheral rows each, one of each
	// category. Row 0's value sits on its category-1 row and row 1's on
	// its category-2 row, and the rows' gradients have opposite signs, so
	// splitting on the category lets each side take its own weight
	// (reduction 100 over the unsplit leaf's 0).
	cats := column.NewCode("cat", column.Categorical, []int32{1, 2, 1, 2})
	values := []float64{10, 0, 0, 10}

	matches := []RowMatches{
		{PopRow: 0, Peripheral: []int{0, 1}},
		{PopRow: 1, Peripheral: []int{2, 3}},
	}
	g := []float64{-10, 10}
	h := []float64{1, 1}

	candidates := CategoricalEqualityCandidates(0, cats)
	l := loss.NewSquare()
	params := DefaultParams()
	params.MinLeafSupport = 0

	root, reduction := Grow(matches, values, g, h, candidates, l, params, 0, 0)
	require.NotNil(t, root)
	require.False(t, root.IsLeaf)
	require.Equal(t, CategoricalEquality, root.Condition.Kind)
	require.Greater(t, reduction, 0.0)
}

func TestGrowStopsWhenNoImprovingCandidate(t *testing.T) {
	cats := column.NewCode("cat", column.Categorical, []int32{1, 1, 1, 1})
	values := []float64{5, 5, 5, 5}
	matches := []RowMatches{
		{PopRow: 0, Peripheral: []int{0, 1}},
		{PopRow: 1, Peripheral: []int{2, 3}},
	}
	g := []float64{-5, -5}
	h := []float64{1, 1}

	candidates := CategoricalEqualityCandidates(0, cats)
	root, reduction := Grow(matches, values, g, h, candidates, loss.NewSquare(), DefaultParams(), 0, 0)
	require.True(t, root.IsLeaf)
	// No candidate improves on the single-leaf fit (every row shares the
	// same category), so the reduction returned is just the root leaf's
	// own closed-form gain over predicting 0: 0.5*sumG^2/sumH with
	// sumG=-100, sumH=200.
	require.InDelta(t, 25.0, reduction, 1e-3)
}

func TestNodeScaleAndDepth(t *testing.T) {
	leaf1 := NewLeaf(2.0)
	leaf2 := NewLeaf(-1.0)
	cond := &Condition{Kind: NumericalThreshold, ColumnIndex: 0, Threshold: 1.5}
	root := NewSplit(cond, leaf1, leaf2)

	require.Equal(t, 1, root.Depth())
	root.Scale(2.0)
	require.Equal(t, 4.0, leaf1.Weight)
	require.Equal(t, -2.0, leaf2.Weight)
}
