package match

import (
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/index"
	"github.com/relfeat/engine/placeholder"
	"github.com/stretchr/testify/require"
)

func TestMatchmakerKeyOnly(t *testing.T) {
	periphKey := column.NewCode("key", column.JoinKey, []int32{1, 2, 1, 3})
	idx := index.BuildJoinIndex(periphKey)

	popKey := column.NewCode("key", column.JoinKey, []int32{1, 2, 4})
	mm := NewKeyOnly(placeholder.Edge{}, popKey, idx)

	got := mm.Make(0)
	require.Equal(t, []Match{{IxOutput: 0, IxInput: 0}, {IxOutput: 0, IxInput: 2}}, got)
	mm.Release(got)

	got = mm.Make(2)
	require.Empty(t, got)
	mm.Release(got)
}

func TestMatchmakerOneToOne(t *testing.T) {
	periphKey := column.NewCode("key", column.JoinKey, []int32{1, 1})
	idx := index.BuildJoinIndex(periphKey)
	popKey := column.NewCode("key", column.JoinKey, []int32{1})
	mm := NewKeyOnly(placeholder.Edge{Relationship: placeholder.OneToOne}, popKey, idx)

	got := mm.Make(0)
	require.Len(t, got, 1)
}

func TestMatchmakerTemporal(t *testing.T) {
	periphKey := column.NewCode("key", column.JoinKey, []int32{1, 1, 1})
	lower := column.NewFloat("lo", column.Numerical, []float64{0, 10, 20})
	twIdx := index.Build(periphKey, lower, nil, 15)

	popKey := column.NewCode("key", column.JoinKey, []int32{1})
	popTS := column.NewFloat("ts", column.Numerical, []float64{12})
	mm := NewTemporal(placeholder.Edge{Horizon: 0}, popKey, popTS, twIdx)

	got := mm.Make(0)
	// at t=12: row0 window [0,15) contains 12; row1 window [10,25) contains 12;
	// row2 window [20,35) does not.
	require.ElementsMatch(t, []int{0, 1}, matchedInputs(got))
}

func matchedInputs(ms []Match) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = int(m.IxInput)
	}
	return out
}
