// Package coordinator implements the thread-pool coordinator (C12):
// work partitioned over contiguous population-row ranges, reduced
// through commutative sufficient statistics, with cooperative
// cancellation and no per-thread mutation of shared model state.
package coordinator

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
)

var (
	tasksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relfeat",
		Subsystem: "coordinator",
		Name:      "tasks_processed_total",
		Help:      "Number of row-range tasks completed by a worker.",
	}, []string{"stage"})

	reductionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relfeat",
		Subsystem: "coordinator",
		Name:      "reduction_seconds",
		Help:      "Time spent reducing per-thread sufficient statistics.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(tasksProcessed, reductionDuration)
}

// NumThreads resolves the configured thread count per §4.10:
// max(2, hw_concurrency-2) when requested is 0, otherwise the request
// is honored as-is. hw_concurrency is read via gopsutil so the count
// reflects the host's logical CPUs even inside a cgroup-limited
// container, falling back to runtime.NumCPU() if the probe fails.
func NumThreads(requested int) int {
	if requested > 0 {
		return requested
	}
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n-2 < 2 {
		return 2
	}
	return n - 2
}

// Range is a contiguous population-row partition [Start, End).
type Range struct {
	Start, End int
}

// Partition splits [0, n) into numThreads contiguous, near-equal
// ranges.
func Partition(n, numThreads int) []Range {
	if numThreads < 1 {
		numThreads = 1
	}
	if numThreads > n {
		numThreads = n
	}
	if numThreads == 0 {
		return nil
	}
	base := n / numThreads
	rem := n % numThreads
	ranges := make([]Range, 0, numThreads)
	start := 0
	for i := 0; i < numThreads; i++ {
		size := base
		if i < rem {
			size++
		}
		ranges = append(ranges, Range{Start: start, End: start + size})
		start += size
	}
	return ranges
}

// Stats is the commutative sufficient-statistics accumulator workers
// produce per range and the coordinator sums across ranges — the only
// state that crosses the reduction barrier; workers never touch shared
// model state directly (§5).
type Stats struct {
	SumG, SumH float64
	Count      int
}

func (s *Stats) add(other Stats) {
	s.SumG += other.SumG
	s.SumH += other.SumH
	s.Count += other.Count
}

// Task computes one range's local Stats. Implementations must not
// mutate anything outside the range they were given.
type Task func(ctx context.Context, r Range) Stats

// Run fans Task out across Partition(n, NumThreads(requested)) worker
// goroutines, reduces their Stats commutatively, and returns the total.
// Cancellation is cooperative: ctx is threaded to every Task, which is
// expected to check ctx.Err() between candidates and return early; Run
// itself stops waiting and returns the partial reduction as soon as ctx
// is done, without waiting for the remaining workers.
func Run(ctx context.Context, stage string, n, requested int, task Task) Stats {
	ranges := Partition(n, NumThreads(requested))
	results := make(chan Stats, len(ranges))

	for _, r := range ranges {
		r := r
		go func() {
			results <- task(ctx, r)
			tasksProcessed.WithLabelValues(stage).Inc()
		}()
	}

	timer := prometheus.NewTimer(reductionDuration.WithLabelValues(stage))
	defer timer.ObserveDuration()

	var total Stats
	for range ranges {
		select {
		case s := <-results:
			total.add(s)
		case <-ctx.Done():
			logrus.WithField("stage", stage).Warn("coordinator run cancelled before full reduction")
			return total
		}
	}
	return total
}
