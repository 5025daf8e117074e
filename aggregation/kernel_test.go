package aggregation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelSumAvgCommit(t *testing.T) {
	k := NewKernel([]float64{1, 2, 3, 4}, nil)
	k.ActivateAll()

	sum1, sum2 := k.Eval(Sum)
	require.Equal(t, 10.0, sum1)
	require.Equal(t, 0.0, sum2)

	k.Deactivate([]int{0, 1}, true)
	sum1, sum2 = k.Eval(Sum)
	require.Equal(t, 7.0, sum1)
	require.Equal(t, 3.0, sum2)

	avg1, _ := k.Eval(AVG)
	require.InDelta(t, 3.5, avg1, 1e-9)

	k.RevertToCommit()
	sum1, sum2 = k.Eval(Sum)
	require.Equal(t, 10.0, sum1)
	require.Equal(t, 0.0, sum2)
}

func TestKernelNullExclusion(t *testing.T) {
	k := NewKernel([]float64{1, math.NaN(), 3}, nil)
	k.ActivateAll()
	k.DeactivateSamplesWithNullValues(false)

	count1, _ := k.Eval(Count)
	require.Equal(t, 2.0, count1)
	sum1, _ := k.Eval(Sum)
	require.Equal(t, 4.0, sum1)
}

func TestKernelMedianAndQuantile(t *testing.T) {
	k := NewKernel([]float64{1, 2, 3, 4, 5}, nil)
	k.ActivateAll()
	med, _ := k.Eval(Median)
	require.InDelta(t, 3.0, med, 1e-9)
}

func TestKernelMinMaxNum(t *testing.T) {
	k := NewKernel([]float64{1, 5, 5, 2}, nil)
	k.ActivateAll()
	min1, _ := k.Eval(Min)
	max1, _ := k.Eval(Max)
	numMax1, _ := k.Eval(NumMax)
	require.Equal(t, 1.0, min1)
	require.Equal(t, 5.0, max1)
	require.Equal(t, 2.0, numMax1)
}

func TestKernelTrendAndFirstLast(t *testing.T) {
	k := NewKernel([]float64{1, 2, 3}, []float64{0, 10, 20})
	k.ActivateAll()

	first1, _ := k.Eval(First)
	last1, _ := k.Eval(Last)
	require.Equal(t, 1.0, first1)
	require.Equal(t, 3.0, last1)

	slope1, _ := k.Eval(Trend)
	require.InDelta(t, 0.1, slope1, 1e-9)
}

func TestKernelCategorical(t *testing.T) {
	k := NewCategoricalKernel([]int32{1, 1, 2, 3})
	k.ActivateAll()
	cd1, _ := k.Eval(CountDistinct)
	require.Equal(t, 3.0, cd1)
	mode1, _ := k.Eval(Mode)
	require.Equal(t, 1.0, mode1)

	k.ActivateSamplesContainingCategories([]int32{2, 3}, false)
	k.DeactivateSamplesWithNullValues(false) // no-op, exercises the call
}

func TestKernelZeroMatches(t *testing.T) {
	k := NewKernel(nil, nil)
	k.ActivateAll()
	sum1, sum2 := k.Eval(Sum)
	require.Equal(t, 0.0, sum1)
	require.Equal(t, 0.0, sum2)
	count1, _ := k.Eval(Count)
	require.Equal(t, 0.0, count1)
	avg1, _ := k.Eval(AVG)
	require.True(t, math.IsNaN(avg1))
}
