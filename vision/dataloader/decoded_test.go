package dataloader

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/SBGermi/relabel/vision/dataset"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func testImageFolder(t *testing.T) *dataset.ImageFolderDataset {
	t.Helper()
	root := t.TempDir()

	for class, c := range map[string]color.RGBA{
		"cat": {R: 255, A: 255},
		"dog": {B: 255, A: 255},
	} {
		dir := filepath.Join(root, class)
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("failed to create class dir: %v", err)
		}
		writePNG(t, filepath.Join(dir, "a.png"), c)
		writePNG(t, filepath.Join(dir, "b.png"), c)
	}

	folder, err := dataset.NewImageFolderDataset(root, nil)
	if err != nil {
		t.Fatalf("failed to create folder dataset: %v", err)
	}
	return folder
}

func TestDecodedImageDatasetGet(t *testing.T) {
	folder := testImageFolder(t)
	ds, err := NewDecodedImageDataset(folder, 8, 16)
	if err != nil {
		t.Fatalf("failed to create decoded dataset: %v", err)
	}

	if ds.Len() != 4 {
		t.Fatalf("expected 4 examples, got %d", ds.Len())
	}
	if ds.NumClasses() != 2 {
		t.Fatalf("expected 2 classes, got %d", ds.NumClasses())
	}

	data, label, err := ds.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(data) != 3*8*8 {
		t.Errorf("expected tensor of %d values, got %d", 3*8*8, len(data))
	}
	if label != 0 {
		t.Errorf("expected label 0 for first class, got %d", label)
	}
}

func TestDecodedImageDatasetCaching(t *testing.T) {
	folder := testImageFolder(t)
	ds, err := NewDecodedImageDataset(folder, 8, 16)
	if err != nil {
		t.Fatalf("failed to create decoded dataset: %v", err)
	}

	if _, _, err := ds.Get(1); err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	if _, _, err := ds.Get(1); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	stats := ds.CacheStats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 cache hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 cache miss, got %d", stats.Misses)
	}
}

func TestDecodedImageDatasetLabelPassthrough(t *testing.T) {
	folder := testImageFolder(t)
	ds, err := NewDecodedImageDataset(folder, 8, 0)
	if err != nil {
		t.Fatalf("failed to create decoded dataset: %v", err)
	}

	revised := []int{1, 1, 1, 1}
	if err := ds.SetLabels(revised); err != nil {
		t.Fatalf("SetLabels failed: %v", err)
	}

	labels := ds.Labels()
	for i, l := range labels {
		if l != 1 {
			t.Errorf("label %d: expected 1, got %d", i, l)
		}
	}

	// The original snapshot survives, and Get serves the working label.
	originals := ds.OriginalLabels()
	if originals[0] != 0 {
		t.Errorf("expected original label 0, got %d", originals[0])
	}
	_, label, err := ds.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if label != 1 {
		t.Errorf("expected working label 1 from Get, got %d", label)
	}
}

func TestNewDecodedImageDatasetValidation(t *testing.T) {
	folder := testImageFolder(t)

	if _, err := NewDecodedImageDataset(nil, 8, 16); err == nil {
		t.Error("expected error for nil folder dataset")
	}
	if _, err := NewDecodedImageDataset(folder, 0, 16); err == nil {
		t.Error("expected error for zero target size")
	}
	if _, err := NewDecodedImageDataset(folder, 8, -1); err == nil {
		t.Error("expected error for negative cache size")
	}
}
