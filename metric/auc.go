// Package metric implements the scoring metrics reported alongside a
// fitted model (§8's "AUC on a separable binary problem" testable
// property) — standard-library numeric code with no pack dependency,
// the same justification as loss.
package metric

import "sort"

type pair struct {
	yhat float64
	y    float64
}

// AUC computes the area under the ROC curve for predicted scores yhat
// against binary labels y (any nonzero value counts as the positive
// class). Rows are sorted ascending by yhat; rows sharing an equal
// prediction are swept into the ROC curve as a single step (so ties
// never inflate the result), and the curve is integrated by the
// trapezoid rule while sweeping from the highest prediction down to
// the lowest — the same sort-then-integrate shape as the original
// implementation's AUC::calc_auc/AUC::compress, without the
// lift/precision/proportion curves that implementation also derives
// for plotting, since this metric only needs the scalar AUC.
// Returns 0.5 (chance level) when either class is absent or every
// prediction is identical, since the ROC curve is undefined there.
func AUC(yhat, y []float64) float64 {
	n := len(yhat)
	if n == 0 {
		return 0.5
	}
	pairs := make([]pair, n)
	minY, maxY := yhat[0], yhat[0]
	for i := range yhat {
		pairs[i] = pair{yhat: yhat[i], y: y[i]}
		if yhat[i] < minY {
			minY = yhat[i]
		}
		if yhat[i] > maxY {
			maxY = yhat[i]
		}
	}
	if minY == maxY {
		return 0.5
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].yhat < pairs[j].yhat })

	var totalPos, totalNeg float64
	for _, p := range pairs {
		if p.y != 0 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return 0.5
	}

	var auc, tp, fp, prevTPR, prevFPR float64
	for i := n - 1; i >= 0; {
		threshold := pairs[i].yhat
		for i >= 0 && pairs[i].yhat == threshold {
			if pairs[i].y != 0 {
				tp++
			} else {
				fp++
			}
			i--
		}
		tpr, fpr := tp/totalPos, fp/totalNeg
		auc += (fpr - prevFPR) * (tpr + prevTPR) * 0.5
		prevTPR, prevFPR = tpr, fpr
	}
	return auc
}
