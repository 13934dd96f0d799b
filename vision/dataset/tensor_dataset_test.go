package dataset

import (
	"math/rand"
	"testing"
)

func makeDataset(t *testing.T, n, numClasses int) *TensorDataset {
	t.Helper()

	data := make([][]float32, n)
	labels := make([]int, n)
	for i := range data {
		data[i] = []float32{float32(i), float32(i) * 2}
		labels[i] = i % numClasses
	}

	d, err := NewTensorDataset(data, labels, numClasses)
	if err != nil {
		t.Fatalf("NewTensorDataset failed: %v", err)
	}
	return d
}

func TestTensorDatasetOriginalLabelsSurviveRewrite(t *testing.T) {
	d := makeDataset(t, 4, 2)

	want := d.Labels()
	if err := d.SetLabels([]int{1, 1, 1, 1}); err != nil {
		t.Fatalf("SetLabels failed: %v", err)
	}

	got := d.OriginalLabels()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("original label %d changed from %d to %d after rewrite", i, want[i], got[i])
		}
	}

	_, label, err := d.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if label != 1 {
		t.Errorf("expected working label 1 after rewrite, got %d", label)
	}
}

func TestTensorDatasetSetLabelsAllOrNothing(t *testing.T) {
	d := makeDataset(t, 3, 2)
	before := d.Labels()

	tests := []struct {
		name   string
		labels []int
	}{
		{"wrong length", []int{0, 1}},
		{"out of range", []int{0, 1, 5}},
		{"negative", []int{0, -1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.SetLabels(tt.labels); err == nil {
				t.Fatal("expected error, got nil")
			}
			after := d.Labels()
			for i := range before {
				if after[i] != before[i] {
					t.Errorf("label %d mutated to %d by failed SetLabels", i, after[i])
				}
			}
		})
	}
}

func TestTensorDatasetLabelsReturnsCopy(t *testing.T) {
	d := makeDataset(t, 3, 2)

	labels := d.Labels()
	labels[0] = 1 - labels[0]

	_, got, _ := d.Get(0)
	if got == labels[0] {
		t.Error("mutating the returned slice changed the dataset's labels")
	}
}

func TestInjectSymmetricNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	labels := make([]int, 1000)
	for i := range labels {
		labels[i] = i % 5
	}

	noisy, err := InjectSymmetricNoise(labels, 5, 0.3, rng)
	if err != nil {
		t.Fatalf("InjectSymmetricNoise failed: %v", err)
	}

	flipped := 0
	for i := range labels {
		if noisy[i] < 0 || noisy[i] >= 5 {
			t.Fatalf("noisy label %d out of range: %d", i, noisy[i])
		}
		if noisy[i] != labels[i] {
			flipped++
		}
	}

	// Every flip lands on a different class, so the flip count tracks the
	// rate directly. 30% of 1000 with generous slack.
	if flipped < 230 || flipped > 370 {
		t.Errorf("expected roughly 300 flips, got %d", flipped)
	}

	// Input untouched.
	for i := range labels {
		if labels[i] != i%5 {
			t.Fatalf("input labels were mutated at %d", i)
		}
	}
}

func TestInjectSymmetricNoiseValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := InjectSymmetricNoise([]int{0}, 2, -0.1, rng); err == nil {
		t.Error("expected error for negative rate")
	}
	if _, err := InjectSymmetricNoise([]int{0}, 1, 0.5, rng); err == nil {
		t.Error("expected error for single class")
	}
	if _, err := InjectSymmetricNoise([]int{7}, 2, 0.5, rng); err == nil {
		t.Error("expected error for out-of-range label")
	}
}

func TestNewTensorDatasetValidation(t *testing.T) {
	if _, err := NewTensorDataset(nil, nil, 2); err == nil {
		t.Error("expected error for empty dataset")
	}
	if _, err := NewTensorDataset([][]float32{{1}}, []int{0, 1}, 2); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := NewTensorDataset([][]float32{{1}}, []int{3}, 2); err == nil {
		t.Error("expected error for out-of-range label")
	}
}
