package dataset

import (
	"fmt"
	"math/rand"
)

// TensorDataset holds pre-decoded feature vectors in memory with the same
// mutable/original label model as ImageFolderDataset. It backs tests and
// synthetic-noise experiments where no image files exist.
type TensorDataset struct {
	data       [][]float32
	labels     []int
	original   []int
	numClasses int
}

// NewTensorDataset creates an in-memory dataset. The given labels become
// both the working assignment and the original snapshot.
func NewTensorDataset(data [][]float32, labels []int, numClasses int) (*TensorDataset, error) {
	if len(data) != len(labels) {
		return nil, fmt.Errorf("data count %d does not match label count %d", len(data), len(labels))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("dataset cannot be empty")
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("class count must be at least 2, got %d", numClasses)
	}
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("label %d for example %d out of range [0, %d)", label, i, numClasses)
		}
	}

	original := make([]int, len(labels))
	copy(original, labels)
	working := make([]int, len(labels))
	copy(working, labels)

	return &TensorDataset{
		data:       data,
		labels:     working,
		original:   original,
		numClasses: numClasses,
	}, nil
}

// Len returns the number of examples.
func (d *TensorDataset) Len() int {
	return len(d.data)
}

// NumClasses returns the number of classes.
func (d *TensorDataset) NumClasses() int {
	return d.numClasses
}

// Get returns the feature vector and current working label at index.
func (d *TensorDataset) Get(index int) ([]float32, int, error) {
	if index < 0 || index >= len(d.data) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(d.data))
	}
	return d.data[index], d.labels[index], nil
}

// Labels returns a copy of the current working label assignment.
func (d *TensorDataset) Labels() []int {
	out := make([]int, len(d.labels))
	copy(out, d.labels)
	return out
}

// OriginalLabels returns a copy of the labels as given at construction.
func (d *TensorDataset) OriginalLabels() []int {
	out := make([]int, len(d.original))
	copy(out, d.original)
	return out
}

// SetLabels overwrites the working label assignment, all-or-nothing.
func (d *TensorDataset) SetLabels(labels []int) error {
	if len(labels) != len(d.labels) {
		return fmt.Errorf("label count %d does not match dataset size %d", len(labels), len(d.labels))
	}
	for i, label := range labels {
		if label < 0 || label >= d.numClasses {
			return fmt.Errorf("label %d for example %d out of range [0, %d)", label, i, d.numClasses)
		}
	}

	copy(d.labels, labels)
	return nil
}

// InjectSymmetricNoise flips each label with the given probability to a
// uniformly chosen different class and returns the corrupted copy. The input
// is not modified. Useful for turning a clean dataset into a noisy-label
// benchmark with a known corruption rate.
func InjectSymmetricNoise(labels []int, numClasses int, rate float64, rng *rand.Rand) ([]int, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("noise rate must be in [0, 1], got %g", rate)
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("class count must be at least 2, got %d", numClasses)
	}

	out := make([]int, len(labels))
	copy(out, labels)
	for i, label := range out {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("label %d for example %d out of range [0, %d)", label, i, numClasses)
		}
		if rng.Float64() >= rate {
			continue
		}
		// Draw from the other numClasses-1 classes uniformly.
		flip := rng.Intn(numClasses - 1)
		if flip >= label {
			flip++
		}
		out[i] = flip
	}

	return out, nil
}
