package training

import (
	"math"
	"testing"
)

func TestMultiStepLRScheduler(t *testing.T) {
	scheduler := NewMultiStepLRScheduler([]int{50, 75}, 0.2)

	tests := []struct {
		epoch    int
		expected float64
	}{
		{0, 0.1},
		{49, 0.1},
		{50, 0.02},
		{74, 0.02},
		{75, 0.004},
		{99, 0.004},
	}

	for _, tt := range tests {
		lr := scheduler.GetLR(tt.epoch, 0.1)
		if math.Abs(lr-tt.expected) > 1e-9 {
			t.Errorf("epoch %d: expected LR %g, got %g", tt.epoch, tt.expected, lr)
		}
	}
}

func TestMultiStepLRSchedulerUnsortedMilestones(t *testing.T) {
	scheduler := NewMultiStepLRScheduler([]int{75, 50}, 0.2)

	if lr := scheduler.GetLR(60, 0.1); math.Abs(lr-0.02) > 1e-9 {
		t.Errorf("expected LR 0.02 at epoch 60, got %g", lr)
	}
}

func TestStepLRScheduler(t *testing.T) {
	scheduler := NewStepLRScheduler(30, 0.1)

	tests := []struct {
		epoch    int
		expected float64
	}{
		{0, 0.1},
		{29, 0.1},
		{30, 0.01},
		{60, 0.001},
	}

	for _, tt := range tests {
		lr := scheduler.GetLR(tt.epoch, 0.1)
		if math.Abs(lr-tt.expected) > 1e-9 {
			t.Errorf("epoch %d: expected LR %g, got %g", tt.epoch, tt.expected, lr)
		}
	}
}

func TestConstantLRScheduler(t *testing.T) {
	scheduler := &ConstantLRScheduler{}

	for _, epoch := range []int{0, 50, 999} {
		if lr := scheduler.GetLR(epoch, 0.05); lr != 0.05 {
			t.Errorf("epoch %d: expected LR 0.05, got %g", epoch, lr)
		}
	}
}
