package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionCoversRange(t *testing.T) {
	ranges := Partition(10, 3)
	require.Len(t, ranges, 3)
	total := 0
	for _, r := range ranges {
		total += r.End - r.Start
	}
	require.Equal(t, 10, total)
	require.Equal(t, 0, ranges[0].Start)
	require.Equal(t, 10, ranges[len(ranges)-1].End)
}

func TestPartitionFewerRowsThanThreads(t *testing.T) {
	ranges := Partition(2, 8)
	require.Len(t, ranges, 2)
}

func TestNumThreadsHonorsRequest(t *testing.T) {
	require.Equal(t, 4, NumThreads(4))
	require.GreaterOrEqual(t, NumThreads(0), 2)
}

func TestRunReducesCommutatively(t *testing.T) {
	task := func(ctx context.Context, r Range) Stats {
		return Stats{SumG: float64(r.End - r.Start), SumH: 1, Count: r.End - r.Start}
	}
	total := Run(context.Background(), "test", 100, 4, task)
	require.Equal(t, 100.0, total.SumG)
	require.Equal(t, 100, total.Count)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task := func(ctx context.Context, r Range) Stats {
		return Stats{Count: r.End - r.Start}
	}
	// Should return promptly without panicking even though ctx is
	// already cancelled before workers finish.
	_ = Run(ctx, "test", 10, 2, task)
}
