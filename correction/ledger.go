package correction

import (
	"fmt"
	"sort"
)

// Ledger is a fixed-depth ring buffer of per-epoch validation accuracy
// percentages. It shares the epoch-to-slot mapping with History, so selecting
// the top K ledger slots and reading the matching prediction rows is always
// consistent.
type Ledger struct {
	scores []float64
}

// NewLedger creates a validation score ledger retaining depth epochs.
func NewLedger(depth int) (*Ledger, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("ledger depth must be positive, got %d", depth)
	}
	return &Ledger{scores: make([]float64, depth)}, nil
}

// Depth returns the number of retained epochs.
func (l *Ledger) Depth() int {
	return len(l.scores)
}

// Record writes an accuracy percentage into slot epoch mod depth,
// overwriting whatever was recorded depth epochs prior.
func (l *Ledger) Record(epoch int, accuracyPercent float64) error {
	if epoch < 0 {
		return fmt.Errorf("epoch must be non-negative, got %d", epoch)
	}
	l.scores[epoch%len(l.scores)] = accuracyPercent
	return nil
}

// Score returns the accuracy stored in a slot.
func (l *Ledger) Score(slot int) (float64, error) {
	if slot < 0 || slot >= len(l.scores) {
		return 0, fmt.Errorf("slot %d out of range [0, %d)", slot, len(l.scores))
	}
	return l.scores[slot], nil
}

// TopK returns the k slot indices with the highest stored accuracies, in
// ascending order of value so the best slot is last. Ties break by ascending
// slot index. k is clamped to the ledger depth.
func (l *Ledger) TopK(k int) []int {
	if k <= 0 {
		return nil
	}
	if k > len(l.scores) {
		k = len(l.scores)
	}

	order := make([]int, len(l.scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return l.scores[order[i]] < l.scores[order[j]]
	})

	return order[len(order)-k:]
}
