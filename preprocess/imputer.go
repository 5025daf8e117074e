package preprocess

import (
	"math"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/relerr"
)

// Imputer replaces NaN values in a numerical column with the column's
// training-time mean, optionally emitting a companion is_null dummy
// column (§4.8 stage 2). Fit and Transform are deliberately separate:
// the mean is computed once and frozen, never recomputed on new data.
type Imputer struct {
	mean       float64
	addDummies bool
	fitted     bool
}

// NewImputer creates an imputer that optionally emits an is_null dummy.
func NewImputer(addDummies bool) *Imputer {
	return &Imputer{addDummies: addDummies}
}

// Fit computes col's mean over non-NaN values. Fatal (relerr.Validation)
// if col is all-NaN or contains an infinite value — both make "replace
// NaN with mean" ill-defined.
func (imp *Imputer) Fit(col *column.Float) error {
	var sum float64
	var n int
	for _, v := range col.Data() {
		if math.IsInf(v, 0) {
			return relerr.Validation("column %q contains an infinite value, cannot impute", col.Name())
		}
		if column.IsNullFloat(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return relerr.Validation("column %q is entirely null, cannot impute", col.Name())
	}
	imp.mean = sum / float64(n)
	imp.fitted = true
	return nil
}

// Transform replaces col's NaNs with the fitted mean, returning the
// imputed column and, if addDummies is set, a companion 0/1 is_null
// column (1 where the source value was NaN).
func (imp *Imputer) Transform(col *column.Float) (*column.Float, *column.Float) {
	data := col.Data()
	out := make([]float64, len(data))
	var dummy []float64
	if imp.addDummies {
		dummy = make([]float64, len(data))
	}
	for i, v := range data {
		if column.IsNullFloat(v) {
			out[i] = imp.mean
			if imp.addDummies {
				dummy[i] = 1
			}
		} else {
			out[i] = v
		}
	}
	imputed := column.NewFloat(col.Name(), col.Kind(), out)
	if !imp.addDummies {
		return imputed, nil
	}
	return imputed, column.NewFloat(col.Name()+"_is_null", column.Numerical, dummy)
}

// Mean returns the fitted mean (only valid after a successful Fit).
func (imp *Imputer) Mean() float64 { return imp.mean }
