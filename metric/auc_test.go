package metric

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAUCPerfectSeparation(t *testing.T) {
	yhat := []float64{0.1, 0.2, 0.3, 0.8, 0.9, 0.95}
	y := []float64{0, 0, 0, 1, 1, 1}
	require.InDelta(t, 1.0, AUC(yhat, y), 1e-9)
}

func TestAUCWorstSeparation(t *testing.T) {
	yhat := []float64{0.1, 0.2, 0.3, 0.8, 0.9, 0.95}
	y := []float64{1, 1, 1, 0, 0, 0}
	require.InDelta(t, 0.0, AUC(yhat, y), 1e-9)
}

func TestAUCRandomPredictionsNearChance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n = 10000
	yhat := make([]float64, n)
	y := make([]float64, n)
	for i := range yhat {
		yhat[i] = rng.Float64()
		if rng.Float64() < 0.5 {
			y[i] = 1
		}
	}
	auc := AUC(yhat, y)
	require.GreaterOrEqual(t, auc, 0.45)
	require.LessOrEqual(t, auc, 0.55)
}

func TestAUCConstantPredictionIsChance(t *testing.T) {
	yhat := []float64{0.5, 0.5, 0.5, 0.5}
	y := []float64{1, 0, 1, 0}
	require.Equal(t, 0.5, AUC(yhat, y))
}

func TestAUCSingleClassIsChance(t *testing.T) {
	yhat := []float64{0.1, 0.4, 0.9}
	y := []float64{1, 1, 1}
	require.Equal(t, 0.5, AUC(yhat, y))
}
