package preprocess

import (
	"math"
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	toks := tokenize("Hello, World! 123")
	require.Equal(t, []string{"hello", "world", "123"}, toks)
}

func TestSplitTextColumn(t *testing.T) {
	col := column.NewString("notes", []string{"foo bar", "baz"})
	toks := SplitTextColumn(col)
	require.Equal(t, []Token{{0, "foo"}, {0, "bar"}, {1, "baz"}}, toks)
}

func TestImputerFitTransform(t *testing.T) {
	col := column.NewFloat("x", column.Numerical, []float64{1, math.NaN(), 3})
	imp := NewImputer(true)
	require.NoError(t, imp.Fit(col))
	require.InDelta(t, 2.0, imp.Mean(), 1e-9)

	out, dummy := imp.Transform(col)
	require.Equal(t, []float64{1, 2, 3}, out.Data())
	require.Equal(t, []float64{0, 1, 0}, dummy.Data())
}

func TestImputerAllNullFails(t *testing.T) {
	col := column.NewFloat("x", column.Numerical, []float64{math.NaN(), math.NaN()})
	imp := NewImputer(false)
	require.Error(t, imp.Fit(col))
}

func TestImputerInfiniteFails(t *testing.T) {
	col := column.NewFloat("x", column.Numerical, []float64{1, math.Inf(1)})
	imp := NewImputer(false)
	require.Error(t, imp.Fit(col))
}

func TestSynthesizeRowID(t *testing.T) {
	d := encoding.New()
	col := SynthesizeRowID(3, d)
	require.Equal(t, 3, col.Len())
	require.NotEqual(t, col.At(0), col.At(1))
}
