package correction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Engine rewrites a label assignment when the averaged model predictions
// support an alternative class more strongly than the originally assigned
// one, by more than the current threshold margin. The threshold rises by a
// fixed increment on every invocation and saturates at 1.0, so relabeling
// becomes progressively more conservative over a run.
//
// The engine always re-evaluates against the original labels captured before
// any correction began, never against previously corrected ones.
type Engine struct {
	threshold float64
	increment float64
}

// NewEngine creates a correction engine with the given initial threshold and
// per-invocation increment.
func NewEngine(initialThreshold, increment float64) (*Engine, error) {
	if initialThreshold < 0 || initialThreshold > 1 {
		return nil, fmt.Errorf("initial threshold must be in [0, 1], got %g", initialThreshold)
	}
	if increment <= 0 {
		return nil, fmt.Errorf("threshold increment must be positive, got %g", increment)
	}

	return &Engine{threshold: initialThreshold, increment: increment}, nil
}

// Threshold returns the current margin threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Correct produces a revised label assignment from the original labels and
// the (N, C) averaged probability matrix. Each returned label is either the
// original label or the best non-assigned class for that example, never any
// other value. The second return value is the updated threshold.
//
// Malformed inputs (length mismatch, out-of-range labels, NaN probabilities)
// fail before any state changes; the inputs are never mutated, so a failed
// invocation leaves the caller's label array untouched.
func (e *Engine) Correct(originalLabels []int, avgProbs *mat.Dense) ([]int, float64, error) {
	if avgProbs == nil {
		return nil, 0, fmt.Errorf("probability matrix must be non-nil")
	}

	n, c := avgProbs.Dims()
	if len(originalLabels) != n {
		return nil, 0, fmt.Errorf("label count %d does not match probability row count %d", len(originalLabels), n)
	}

	revised := make([]int, n)
	for i, assigned := range originalLabels {
		if assigned < 0 || assigned >= c {
			return nil, 0, fmt.Errorf("label %d for example %d out of range [0, %d)", assigned, i, c)
		}

		row := avgProbs.RawRowView(i)
		bestOther := -1
		pBestOther := math.Inf(-1)
		for class, p := range row {
			if math.IsNaN(p) {
				return nil, 0, fmt.Errorf("NaN probability for example %d class %d", i, class)
			}
			if class == assigned {
				continue
			}
			if p > pBestOther {
				pBestOther = p
				bestOther = class
			}
		}

		revised[i] = assigned
		if pBestOther-row[assigned] > e.threshold {
			revised[i] = bestOther
		}
	}

	e.threshold = math.Min(e.threshold+e.increment, 1.0)
	return revised, e.threshold, nil
}
