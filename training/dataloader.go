package training

import (
	"fmt"
	"math/rand"
	"sync"
)

// Dataset defines what the loader needs from a data source.
type Dataset interface {
	Len() int
	NumClasses() int
	// Get returns the feature vector and current working label at idx.
	Get(idx int) ([]float32, int, error)
}

// LabelStore is the mutable-label side of a training dataset. The dataset
// owns the label array; the correction flow reads the original snapshot and
// hands a revised assignment back through SetLabels, which applies it
// all-or-nothing.
type LabelStore interface {
	Labels() []int
	OriginalLabels() []int
	SetLabels(labels []int) error
}

// TrainDataset is a dataset whose labels the correction engine may rewrite.
type TrainDataset interface {
	Dataset
	LabelStore
}

// Batch is one loader step: features flattened batch-major, the working
// labels, and the dataset indices the examples came from. The indices travel
// with the batch because the prediction history buffer is addressed by
// dataset position, not batch position.
type Batch struct {
	Data    []float32
	Labels  []int
	Indices []int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Indices)
}

// DataLoader provides batching and shuffling over a Dataset.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	dropLast  bool
	rng       *rand.Rand
	indices   []int
	position  int
	mu        sync.Mutex
}

// NewDataLoader creates a loader. dropLast discards a trailing partial batch,
// which training wants (tiny batches destabilize the gradient estimate) and
// evaluation does not. rng may be nil when shuffle is false.
func NewDataLoader(dataset Dataset, batchSize int, shuffle, dropLast bool, rng *rand.Rand) (*DataLoader, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataset must be non-nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		dropLast:  dropLast,
		rng:       rng,
		indices:   indices,
	}, nil
}

// Len returns the number of batches per epoch.
func (dl *DataLoader) Len() int {
	n := len(dl.indices)
	if dl.dropLast {
		return n / dl.batchSize
	}
	return (n + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling if configured.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Next returns the next batch, or nil at end of epoch.
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil
	}
	if dl.dropLast && remaining < dl.batchSize {
		return nil, nil
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}
	batchIndices := dl.indices[dl.position:end]
	dl.position = end

	return dl.loadBatch(batchIndices)
}

// HasNext reports whether the current epoch has more batches.
func (dl *DataLoader) HasNext() bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if dl.dropLast {
		return remaining >= dl.batchSize
	}
	return remaining > 0
}

func (dl *DataLoader) loadBatch(batchIndices []int) (*Batch, error) {
	first, _, err := dl.dataset.Get(batchIndices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %w", batchIndices[0], err)
	}
	sampleSize := len(first)

	batch := &Batch{
		Data:    make([]float32, len(batchIndices)*sampleSize),
		Labels:  make([]int, len(batchIndices)),
		Indices: make([]int, len(batchIndices)),
	}

	for i, idx := range batchIndices {
		data, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %w", idx, err)
		}
		if len(data) != sampleSize {
			return nil, fmt.Errorf("sample %d has size %d, expected %d", idx, len(data), sampleSize)
		}

		copy(batch.Data[i*sampleSize:], data)
		batch.Labels[i] = label
		batch.Indices[i] = idx
	}

	return batch, nil
}

// Iterator returns a channel over the epoch's batches. It resets the loader
// before producing.
func (dl *DataLoader) Iterator() <-chan *Batch {
	out := make(chan *Batch, 1)

	go func() {
		defer close(out)
		dl.Reset()

		for {
			batch, err := dl.Next()
			if err != nil {
				fmt.Printf("DataLoader error: %v\n", err)
				return
			}
			if batch == nil {
				return
			}
			out <- batch
		}
	}()

	return out
}
