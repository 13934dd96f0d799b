package correction

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Selector picks the best-performing recent epochs from the ledger and
// averages their recorded probability vectors. Averaging over the top K
// validation epochs, rather than trusting the single latest epoch, smooths
// over per-epoch noise in the model's own predictions.
type Selector struct {
	ledger  *Ledger
	history *History
	k       int
}

// NewSelector creates an epoch selector over a ledger and history buffer
// that must share the same depth.
func NewSelector(ledger *Ledger, history *History, k int) (*Selector, error) {
	if ledger == nil || history == nil {
		return nil, fmt.Errorf("ledger and history must be non-nil")
	}
	if ledger.Depth() != history.Depth() {
		return nil, fmt.Errorf("ledger depth %d does not match history depth %d", ledger.Depth(), history.Depth())
	}
	if k <= 0 || k > ledger.Depth() {
		return nil, fmt.Errorf("k must be in [1, %d], got %d", ledger.Depth(), k)
	}

	return &Selector{ledger: ledger, history: history, k: k}, nil
}

// Select returns the slot indices of the K epochs with the highest recorded
// validation accuracy.
func (s *Selector) Select() []int {
	return s.ledger.TopK(s.k)
}

// AverageSelected returns the per-example mean probability vector over the
// selected epochs' recorded predictions as an (N, C) matrix. The matrix is
// recomputed on every call; it is not retained.
func (s *Selector) AverageSelected() *mat.Dense {
	slots := s.Select()
	n := s.history.NumExamples()
	c := s.history.NumClasses()

	avg := mat.NewDense(n, c, nil)
	scale := 1.0 / float64(len(slots))
	for _, slot := range slots {
		for i := 0; i < n; i++ {
			row, _ := s.history.Row(slot, i)
			floats.AddScaled(avg.RawRowView(i), scale, row)
		}
	}

	return avg
}
