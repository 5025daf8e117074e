package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSquareGradients(t *testing.T) {
	s := NewSquare()
	y := []float64{1, 2, 3}
	yhat := []float64{0, 0, 0}
	g, h := s.CalcGradients(y, yhat)
	require.Equal(t, []float64{-1, -2, -3}, g)
	require.Equal(t, []float64{1, 1, 1}, h)
}

func TestSquareWeightAndSplit(t *testing.T) {
	s := NewSquare()
	w := s.CalcWeight(-6, 3)
	require.InDelta(t, 2.0, w, 1e-3)

	red := s.EvaluateSplit(-4, 2, 2, 2, 1, -2)
	require.Greater(t, red, 0.0)
}

func TestSquareEvaluateLeafMatchesSplitDecomposition(t *testing.T) {
	s := NewSquare()
	// EvaluateSplit is defined in terms of EvaluateLeaf applied to each
	// side plus the combined totals; verify the identity directly.
	sumG1, sumH1, sumG2, sumH2 := -4.0, 2.0, -2.0, 1.0
	want := s.EvaluateLeaf(sumG1, sumH1) + s.EvaluateLeaf(sumG2, sumH2) - s.EvaluateLeaf(sumG1+sumG2, sumH1+sumH2)
	got := s.EvaluateSplit(sumG1, sumH1, s.CalcWeight(sumG1, sumH1), sumG2, sumH2, s.CalcWeight(sumG2, sumH2))
	require.InDelta(t, want, got, 1e-9)
}

func TestSquareZeroHessian(t *testing.T) {
	s := &Square{L2: 0}
	w := s.CalcWeight(5, 0)
	require.Equal(t, 0.0, w)
}

func TestSquareIntercept(t *testing.T) {
	s := NewSquare()
	require.InDelta(t, 2.0, s.Intercept([]float64{1, 2, 3}), 1e-9)
}

func TestCrossEntropyIntercept(t *testing.T) {
	c := NewCrossEntropy()
	logit := c.Intercept([]float64{1, 1, 0, 0})
	require.InDelta(t, 0, logit, 1e-6)
}

func TestCrossEntropyTransform(t *testing.T) {
	c := NewCrossEntropy()
	out := c.Transform([]float64{0})
	require.InDelta(t, 0.5, out[0], 1e-9)
}

func TestCalcUpdateRateConverges(t *testing.T) {
	s := NewSquare()
	y := []float64{2, 2, 2}
	yhatOld := []float64{0, 0, 0}
	pred := []float64{2, 2, 2}
	eta := s.CalcUpdateRate(y, yhatOld, pred)
	require.InDelta(t, 1.0, eta, 1e-2)
}

func TestCrossEntropyGradientsBounded(t *testing.T) {
	c := NewCrossEntropy()
	g, h := c.CalcGradients([]float64{1, 0}, []float64{10, -10})
	for _, v := range append(append([]float64{}, g...), h...) {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}
