package fastprop

import (
	"testing"

	"github.com/relfeat/engine/aggregation"
	"github.com/relfeat/engine/match"
	"github.com/stretchr/testify/require"
)

func TestEnumerateSkipsTimeDependentWithoutTimestamps(t *testing.T) {
	sources := []ColumnSource{{Table: "orders", Column: "amount", Values: []float64{1, 2, 3}}}
	catalog := Enumerate(sources)
	for _, f := range catalog {
		require.False(t, f.Kind.RequiresTimestamps())
	}
}

func TestMaterializeSumAndCount(t *testing.T) {
	sources := []ColumnSource{{Table: "orders", Column: "amount", Values: []float64{10, 20, 30}}}
	catalog := []Feature{
		{PeripheralTable: "orders", Column: "amount", Kind: aggregation.Sum},
		{PeripheralTable: "orders", Column: "amount", Kind: aggregation.Count},
	}
	makeMatches := func(popRow int) []match.Match {
		if popRow == 0 {
			return []match.Match{{IxOutput: 0, IxInput: 0}, {IxOutput: 0, IxInput: 1}}
		}
		return []match.Match{{IxOutput: 1, IxInput: 2}}
	}

	out := Materialize(catalog, sources, 2, makeMatches)
	sumName := Feature{PeripheralTable: "orders", Column: "amount", Kind: aggregation.Sum}.Name()
	require.Equal(t, []float64{30, 30}, out[sumName])
	countName := Feature{PeripheralTable: "orders", Column: "amount", Kind: aggregation.Count}.Name()
	require.Equal(t, []float64{2, 1}, out[countName])
}
