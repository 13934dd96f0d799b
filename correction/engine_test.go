package correction

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEngineRelabelScenarios(t *testing.T) {
	tests := []struct {
		name          string
		labels        []int
		probs         []float64
		threshold     float64
		wantLabels    []int
		wantThreshold float64
	}{
		{
			name:          "margin above threshold relabels",
			labels:        []int{0},
			probs:         []float64{0.2, 0.75, 0.05},
			threshold:     0.3,
			wantLabels:    []int{1},
			wantThreshold: 0.4,
		},
		{
			name:          "margin below threshold keeps original",
			labels:        []int{0},
			probs:         []float64{0.2, 0.75, 0.05},
			threshold:     0.6,
			wantLabels:    []int{0},
			wantThreshold: 0.7,
		},
		{
			name:          "margin equal to threshold keeps original",
			labels:        []int{0},
			probs:         []float64{0.2, 0.75, 0.05},
			threshold:     0.55,
			wantLabels:    []int{0},
			wantThreshold: 0.65,
		},
		{
			name:          "assigned class dominant keeps original at zero threshold",
			labels:        []int{2},
			probs:         []float64{0.1, 0.2, 0.7},
			threshold:     0.0,
			wantLabels:    []int{2},
			wantThreshold: 0.1,
		},
		{
			name:          "threshold saturates at one",
			labels:        []int{0},
			probs:         []float64{0.5, 0.5, 0.0},
			threshold:     0.95,
			wantLabels:    []int{0},
			wantThreshold: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(tt.threshold, 0.1)
			if err != nil {
				t.Fatalf("NewEngine failed: %v", err)
			}

			revised, newThreshold, err := engine.Correct(tt.labels, mat.NewDense(len(tt.labels), 3, tt.probs))
			if err != nil {
				t.Fatalf("Correct failed: %v", err)
			}

			for i, want := range tt.wantLabels {
				if revised[i] != want {
					t.Errorf("example %d: expected label %d, got %d", i, want, revised[i])
				}
			}
			if math.Abs(newThreshold-tt.wantThreshold) > 1e-12 {
				t.Errorf("expected threshold %g, got %g", tt.wantThreshold, newThreshold)
			}
			if engine.Threshold() != newThreshold {
				t.Errorf("engine threshold %g does not match returned %g", engine.Threshold(), newThreshold)
			}
		})
	}
}

func TestEngineOutputIsOriginalOrBestOther(t *testing.T) {
	probs := mat.NewDense(4, 3, []float64{
		0.1, 0.6, 0.3,
		0.5, 0.3, 0.2,
		0.05, 0.05, 0.9,
		0.34, 0.33, 0.33,
	})
	labels := []int{0, 0, 0, 2}

	engine, err := NewEngine(0.0, 0.1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	revised, _, err := engine.Correct(labels, probs)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	for i, got := range revised {
		assigned := labels[i]
		bestOther := -1
		best := math.Inf(-1)
		for c := 0; c < 3; c++ {
			if c == assigned {
				continue
			}
			if p := probs.At(i, c); p > best {
				best = p
				bestOther = c
			}
		}
		if got != assigned && got != bestOther {
			t.Errorf("example %d: label %d is neither original %d nor best other %d", i, got, assigned, bestOther)
		}
	}
}

func TestEngineNeverRelabelsDominantAssigned(t *testing.T) {
	// If the assigned class holds the argmax, the margin is non-positive and
	// no positive threshold can be exceeded.
	probs := mat.NewDense(1, 4, []float64{0.4, 0.3, 0.2, 0.1})

	for _, threshold := range []float64{0.0, 0.1, 0.5, 0.9} {
		engine, err := NewEngine(threshold, 0.1)
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}

		revised, _, err := engine.Correct([]int{0}, probs)
		if err != nil {
			t.Fatalf("Correct failed: %v", err)
		}
		if revised[0] != 0 {
			t.Errorf("threshold %g: dominant assigned class was relabeled to %d", threshold, revised[0])
		}
	}
}

func TestEngineThresholdMonotone(t *testing.T) {
	engine, err := NewEngine(0.3, 0.1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	probs := mat.NewDense(1, 3, []float64{0.2, 0.75, 0.05})
	labels := []int{0}

	previous := engine.Threshold()
	for i := 0; i < 12; i++ {
		_, newThreshold, err := engine.Correct(labels, probs)
		if err != nil {
			t.Fatalf("invocation %d failed: %v", i, err)
		}
		if newThreshold < previous {
			t.Errorf("invocation %d: threshold decreased from %g to %g", i, previous, newThreshold)
		}
		if newThreshold > 1.0 {
			t.Errorf("invocation %d: threshold %g exceeds 1.0", i, newThreshold)
		}
		previous = newThreshold
	}
	if previous != 1.0 {
		t.Errorf("expected threshold saturated at 1.0, got %g", previous)
	}
}

func TestEngineRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		probs  *mat.Dense
	}{
		{
			name:   "nil probability matrix",
			labels: []int{0},
			probs:  nil,
		},
		{
			name:   "label count mismatch",
			labels: []int{0, 1},
			probs:  mat.NewDense(1, 3, []float64{0.2, 0.7, 0.1}),
		},
		{
			name:   "label out of range",
			labels: []int{3},
			probs:  mat.NewDense(1, 3, []float64{0.2, 0.7, 0.1}),
		},
		{
			name:   "negative label",
			labels: []int{-1},
			probs:  mat.NewDense(1, 3, []float64{0.2, 0.7, 0.1}),
		},
		{
			name:   "NaN probability",
			labels: []int{0},
			probs:  mat.NewDense(1, 3, []float64{0.2, math.NaN(), 0.1}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(0.3, 0.1)
			if err != nil {
				t.Fatalf("NewEngine failed: %v", err)
			}

			revised, _, err := engine.Correct(tt.labels, tt.probs)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if revised != nil {
				t.Errorf("expected nil labels on error, got %v", revised)
			}
			if engine.Threshold() != 0.3 {
				t.Errorf("threshold changed to %g on failed invocation", engine.Threshold())
			}
		})
	}
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(-0.1, 0.1); err == nil {
		t.Error("expected error for negative threshold")
	}
	if _, err := NewEngine(1.5, 0.1); err == nil {
		t.Error("expected error for threshold above 1")
	}
	if _, err := NewEngine(0.3, 0); err == nil {
		t.Error("expected error for zero increment")
	}
}
