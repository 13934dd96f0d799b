package correction

import (
	"fmt"
)

// History is a fixed-depth ring buffer of per-example predicted class
// probabilities. Slot e mod depth holds the probability vector recorded for
// every example during epoch e; writing epoch e+depth destroys epoch e's data.
// Cyclic overwrite is the designed behavior, not an error.
type History struct {
	depth       int
	numExamples int
	numClasses  int
	data        []float64 // depth * numExamples * numClasses, row-major
}

// NewHistory creates a prediction history buffer retaining the last depth
// epochs of probability vectors for numExamples examples over numClasses
// classes.
func NewHistory(depth, numExamples, numClasses int) (*History, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("history depth must be positive, got %d", depth)
	}
	if numExamples <= 0 {
		return nil, fmt.Errorf("example count must be positive, got %d", numExamples)
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("class count must be at least 2, got %d", numClasses)
	}

	return &History{
		depth:       depth,
		numExamples: numExamples,
		numClasses:  numClasses,
		data:        make([]float64, depth*numExamples*numClasses),
	}, nil
}

// Depth returns the number of retained epochs.
func (h *History) Depth() int {
	return h.depth
}

// NumExamples returns the number of examples tracked per epoch.
func (h *History) NumExamples() int {
	return h.numExamples
}

// NumClasses returns the probability vector length.
func (h *History) NumClasses() int {
	return h.numClasses
}

// Slot returns the buffer slot epoch maps to.
func (h *History) Slot(epoch int) int {
	return epoch % h.depth
}

// Record writes probability vectors into slot epoch mod depth at the given
// example columns. probs[i] is the vector for example indices[i]. The caller
// must supply already-softmax-normalized rows; no normalization happens here.
func (h *History) Record(epoch int, indices []int, probs [][]float64) error {
	if epoch < 0 {
		return fmt.Errorf("epoch must be non-negative, got %d", epoch)
	}
	if len(indices) != len(probs) {
		return fmt.Errorf("index count %d does not match probability row count %d", len(indices), len(probs))
	}

	slot := h.Slot(epoch)
	base := slot * h.numExamples * h.numClasses

	for i, idx := range indices {
		if idx < 0 || idx >= h.numExamples {
			return fmt.Errorf("example index %d out of range [0, %d)", idx, h.numExamples)
		}
		if len(probs[i]) != h.numClasses {
			return fmt.Errorf("probability row %d has length %d, expected %d", i, len(probs[i]), h.numClasses)
		}
		copy(h.data[base+idx*h.numClasses:], probs[i])
	}

	return nil
}

// Row returns the probability vector stored for one example in one slot.
// The returned slice aliases the buffer; callers must not modify it.
func (h *History) Row(slot, example int) ([]float64, error) {
	if slot < 0 || slot >= h.depth {
		return nil, fmt.Errorf("slot %d out of range [0, %d)", slot, h.depth)
	}
	if example < 0 || example >= h.numExamples {
		return nil, fmt.Errorf("example %d out of range [0, %d)", example, h.numExamples)
	}

	start := (slot*h.numExamples + example) * h.numClasses
	return h.data[start : start+h.numClasses], nil
}
