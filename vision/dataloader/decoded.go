package dataloader

import (
	"fmt"
	"os"

	"github.com/SBGermi/relabel/vision/dataset"
	"github.com/SBGermi/relabel/vision/preprocessing"
)

// DecodedImageDataset turns an on-disk image folder into a tensor dataset:
// each Get decodes and normalizes the image at that index, through the LRU
// cache when one is configured. Labels pass straight through to the folder
// dataset, so correction rewrites reach it untouched.
type DecodedImageDataset struct {
	folder    *dataset.ImageFolderDataset
	processor *preprocessing.ImageProcessor
	cache     *TensorCache
}

// NewDecodedImageDataset wraps a folder dataset with decoding at the given
// square target size. cacheSize is the number of decoded tensors to retain;
// zero disables caching.
func NewDecodedImageDataset(folder *dataset.ImageFolderDataset, targetSize, cacheSize int) (*DecodedImageDataset, error) {
	if folder == nil {
		return nil, fmt.Errorf("folder dataset must be non-nil")
	}
	if targetSize <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d", targetSize)
	}
	if cacheSize < 0 {
		return nil, fmt.Errorf("cache size must be non-negative, got %d", cacheSize)
	}

	return &DecodedImageDataset{
		folder:    folder,
		processor: preprocessing.NewImageProcessor(targetSize),
		cache:     NewTensorCache(cacheSize),
	}, nil
}

// Len returns the number of images.
func (d *DecodedImageDataset) Len() int {
	return d.folder.Len()
}

// NumClasses returns the number of classes.
func (d *DecodedImageDataset) NumClasses() int {
	return d.folder.NumClasses()
}

// Get returns the decoded, normalized CHW tensor and working label at index.
func (d *DecodedImageDataset) Get(index int) ([]float32, int, error) {
	path, label, err := d.folder.GetItem(index)
	if err != nil {
		return nil, 0, err
	}

	if data, ok := d.cache.Get(index); ok {
		return data, label, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	processed, err := d.processor.DecodeAndPreprocess(file)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to preprocess image %s: %w", path, err)
	}

	d.cache.Put(index, processed.Data)
	return processed.Data, label, nil
}

// Labels returns a copy of the working labels.
func (d *DecodedImageDataset) Labels() []int {
	return d.folder.Labels()
}

// OriginalLabels returns a copy of the label snapshot taken at discovery.
func (d *DecodedImageDataset) OriginalLabels() []int {
	return d.folder.OriginalLabels()
}

// SetLabels replaces the working labels, all or nothing.
func (d *DecodedImageDataset) SetLabels(labels []int) error {
	return d.folder.SetLabels(labels)
}

// CacheStats reports decoded-tensor cache usage.
func (d *DecodedImageDataset) CacheStats() CacheStats {
	return d.cache.Stats()
}
