package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// ImageFolderDataset loads a dataset from a directory structure where each
// subdirectory names a class. Labels are mutable: the label-correction flow
// rewrites the working assignment between epochs, while the labels present at
// construction time are kept as an immutable snapshot for the correction
// engine to re-evaluate against.
type ImageFolderDataset struct {
	imagePaths []string
	labels     []int // working labels, overwritten by SetLabels
	original   []int // labels as loaded, never mutated
	classNames []string
	classToIdx map[string]int
}

// NewImageFolderDataset builds a dataset from root, one subdirectory per
// class. The as-loaded labels become the original snapshot.
func NewImageFolderDataset(root string, extensions []string) (*ImageFolderDataset, error) {
	if len(extensions) == 0 {
		extensions = []string{".jpg", ".jpeg", ".png"}
	}

	d := &ImageFolderDataset{
		classToIdx: make(map[string]int),
	}

	classes, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	classIdx := 0
	for _, classPath := range classes {
		info, err := os.Stat(classPath)
		if err != nil || !info.IsDir() {
			continue
		}

		className := filepath.Base(classPath)
		d.classNames = append(d.classNames, className)
		d.classToIdx[className] = classIdx

		for _, ext := range extensions {
			files, err := filepath.Glob(filepath.Join(classPath, "*"+ext))
			if err != nil {
				continue
			}
			for _, file := range files {
				d.imagePaths = append(d.imagePaths, file)
				d.labels = append(d.labels, classIdx)
			}
		}

		classIdx++
	}

	if len(d.imagePaths) == 0 {
		return nil, fmt.Errorf("no images found in %s", root)
	}

	d.original = make([]int, len(d.labels))
	copy(d.original, d.labels)

	return d, nil
}

// Len returns the number of examples.
func (d *ImageFolderDataset) Len() int {
	return len(d.imagePaths)
}

// GetItem returns the image path and current working label at index.
func (d *ImageFolderDataset) GetItem(index int) (string, int, error) {
	if index < 0 || index >= len(d.imagePaths) {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, len(d.imagePaths))
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of discovered classes.
func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classNames)
}

// ClassNames returns the class names in label order.
func (d *ImageFolderDataset) ClassNames() []string {
	return d.classNames
}

// Labels returns a copy of the current working label assignment.
func (d *ImageFolderDataset) Labels() []int {
	out := make([]int, len(d.labels))
	copy(out, d.labels)
	return out
}

// OriginalLabels returns a copy of the labels as they were at construction,
// before any correction.
func (d *ImageFolderDataset) OriginalLabels() []int {
	out := make([]int, len(d.original))
	copy(out, d.original)
	return out
}

// SetLabels overwrites the working label assignment. The replacement is
// all-or-nothing: if any entry is invalid, no label changes.
func (d *ImageFolderDataset) SetLabels(labels []int) error {
	if len(labels) != len(d.labels) {
		return fmt.Errorf("label count %d does not match dataset size %d", len(labels), len(d.labels))
	}
	for i, label := range labels {
		if label < 0 || label >= len(d.classNames) {
			return fmt.Errorf("label %d for example %d out of range [0, %d)", label, i, len(d.classNames))
		}
	}

	copy(d.labels, labels)
	return nil
}

// ClassDistribution returns the number of samples per class under the
// current working labels.
func (d *ImageFolderDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, label := range d.labels {
		dist[d.classNames[label]]++
	}
	return dist
}

// Split divides the dataset into train and validation subsets. Each subset
// takes its own original-label snapshot from the current working labels.
func (d *ImageFolderDataset) Split(trainRatio float64, shuffle bool, rng *rand.Rand) (*ImageFolderDataset, *ImageFolderDataset) {
	n := len(d.imagePaths)
	trainSize := int(float64(n) * trainRatio)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle && rng != nil {
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return d.Subset(indices[:trainSize]), d.Subset(indices[trainSize:])
}

// Subset creates a new dataset from the given indices. The subset snapshots
// the selected working labels as its own originals.
func (d *ImageFolderDataset) Subset(indices []int) *ImageFolderDataset {
	subset := &ImageFolderDataset{
		imagePaths: make([]string, len(indices)),
		labels:     make([]int, len(indices)),
		original:   make([]int, len(indices)),
		classNames: d.classNames,
		classToIdx: d.classToIdx,
	}

	for i, idx := range indices {
		subset.imagePaths[i] = d.imagePaths[idx]
		subset.labels[i] = d.labels[idx]
		subset.original[i] = d.labels[idx]
	}

	return subset
}
