package aggregation

import (
	"math"
	"sort"
)

// state accumulates sufficient statistics for every commutative
// aggregation (everything except the order/time-dependent handful
// evaluated directly from the active row list — see kernel.go). Add and
// Remove are exact inverses of each other, which is what lets the
// splitter move a single match between eta1 and eta2 without
// recomputing either side from scratch: O(1) for the moment sums and
// the frequency map, O(n) for the sorted slice (a binary search plus
// one slice shift).
type state struct {
	count             int
	sum, sumSq        float64
	sumCube, sumQuad  float64
	sorted            []float64 // kept sorted ascending, duplicates kept
	freq              map[float64]int
}

func newState() *state {
	return &state{freq: make(map[float64]int)}
}

func (s *state) add(v float64) {
	s.count++
	s.sum += v
	s.sumSq += v * v
	s.sumCube += v * v * v
	s.sumQuad += v * v * v * v
	s.freq[v]++

	i := sort.SearchFloat64s(s.sorted, v)
	s.sorted = append(s.sorted, 0)
	copy(s.sorted[i+1:], s.sorted[i:])
	s.sorted[i] = v
}

// remove undoes a previous add(v). v must have been added and not yet
// removed (the caller, Kernel, only ever removes values it knows are
// currently members).
func (s *state) remove(v float64) {
	s.count--
	s.sum -= v
	s.sumSq -= v * v
	s.sumCube -= v * v * v
	s.sumQuad -= v * v * v * v
	if n := s.freq[v]; n <= 1 {
		delete(s.freq, v)
	} else {
		s.freq[v] = n - 1
	}

	i := sort.SearchFloat64s(s.sorted, v)
	s.sorted = append(s.sorted[:i], s.sorted[i+1:]...)
}

func (s *state) mean() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sum / float64(s.count)
}

func (s *state) variance() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	m := s.sum / n
	return s.sumSq/n - m*m
}

func (s *state) stddev() float64 {
	return math.Sqrt(s.variance())
}

func (s *state) skew() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	m := s.sum / n
	sd := s.stddev()
	if sd == 0 {
		return math.NaN()
	}
	third := s.sumCube/n - 3*m*s.sumSq/n + 2*m*m*m
	return third / (sd * sd * sd)
}

func (s *state) kurtosis() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	m := s.sum / n
	v := s.variance()
	if v == 0 {
		return math.NaN()
	}
	fourth := s.sumQuad/n - 4*m*s.sumCube/n + 6*m*m*s.sumSq/n - 3*m*m*m*m
	return fourth/(v*v) - 3 // excess kurtosis
}

func (s *state) min() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sorted[0]
}

func (s *state) max() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sorted[len(s.sorted)-1]
}

func (s *state) numAtExtreme(wantMax bool) float64 {
	if s.count == 0 {
		return 0
	}
	target := s.sorted[0]
	if wantMax {
		target = s.sorted[len(s.sorted)-1]
	}
	return float64(s.freq[target])
}

func (s *state) countAboveMean() float64 {
	if s.count == 0 {
		return 0
	}
	m := s.mean()
	i := sort.SearchFloat64s(s.sorted, math.Nextafter(m, math.Inf(1)))
	// i is the first index with sorted[i] > m (approximately); walk to
	// be exact against floating point ties.
	for i > 0 && s.sorted[i-1] > m {
		i--
	}
	for i < len(s.sorted) && s.sorted[i] <= m {
		i++
	}
	return float64(len(s.sorted) - i)
}

func (s *state) countBelowMean() float64 {
	if s.count == 0 {
		return 0
	}
	m := s.mean()
	i := 0
	for i < len(s.sorted) && s.sorted[i] < m {
		i++
	}
	return float64(i)
}

func (s *state) countDistinct() float64 {
	return float64(len(s.freq))
}

func (s *state) mode() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	best, bestN := s.sorted[0], -1
	for _, v := range s.sorted {
		if n := s.freq[v]; n > bestN {
			best, bestN = v, n
		}
	}
	return best
}

// quantile returns the p-quantile (p in [0,1]) using linear
// interpolation between order statistics, the common convention for
// sample quantiles (R's type-7 / numpy's default).
func (s *state) quantile(p float64) float64 {
	n := len(s.sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return s.sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s.sorted[lo]
	}
	frac := pos - float64(lo)
	return s.sorted[lo]*(1-frac) + s.sorted[hi]*frac
}

// eval computes a commutative (non order/time-dependent) kind's value
// from this state's current sufficient statistics. Returns ok=false for
// kinds that require the raw active row list (handled by Kernel.Eval).
func (s *state) eval(k Kind) (float64, bool) {
	switch k {
	case AVG:
		return s.mean(), true
	case Sum:
		return s.sum, true
	case Count:
		return float64(s.count), true
	case Var:
		return s.variance(), true
	case StdDev:
		return s.stddev(), true
	case Skew:
		return s.skew(), true
	case Kurtosis:
		return s.kurtosis(), true
	case Min:
		return s.min(), true
	case Max:
		return s.max(), true
	case NumMax:
		return s.numAtExtreme(true), true
	case NumMin:
		return s.numAtExtreme(false), true
	case CountAboveMean:
		return s.countAboveMean(), true
	case CountBelowMean:
		return s.countBelowMean(), true
	case CountDistinct:
		return s.countDistinct(), true
	case CountMinusCountDistinct:
		return float64(s.count) - s.countDistinct(), true
	case CountDistinctOverCount:
		if s.count == 0 {
			return math.NaN(), true
		}
		return s.countDistinct() / float64(s.count), true
	case Mode:
		return s.mode(), true
	case VariationCoefficient:
		m := s.mean()
		if m == 0 {
			return math.NaN(), true
		}
		return s.stddev() / m, true
	default:
		if p, isQuantile := quantileP(k); isQuantile {
			return s.quantile(p), true
		}
		return 0, false
	}
}
