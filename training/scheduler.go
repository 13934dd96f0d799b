package training

import (
	"math"
	"sort"
)

// LRScheduler computes the learning rate for an epoch. Schedulers are pure
// functions of the epoch and base rate.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64
	GetName() string
}

// MultiStepLRScheduler multiplies the learning rate by gamma at each
// milestone epoch, matching the decay schedule used for noisy-label training
// runs (milestones 50 and 75 with gamma 0.2 in the reference configuration).
type MultiStepLRScheduler struct {
	Milestones []int
	Gamma      float64
}

// NewMultiStepLRScheduler creates a milestone-based scheduler. Milestones
// are kept sorted; an empty list means a constant rate.
func NewMultiStepLRScheduler(milestones []int, gamma float64) *MultiStepLRScheduler {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	sorted := make([]int, len(milestones))
	copy(sorted, milestones)
	sort.Ints(sorted)

	return &MultiStepLRScheduler{
		Milestones: sorted,
		Gamma:      gamma,
	}
}

func (s *MultiStepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	passed := 0
	for _, m := range s.Milestones {
		if epoch >= m {
			passed++
		}
	}
	return baseLR * math.Pow(s.Gamma, float64(passed))
}

func (s *MultiStepLRScheduler) GetName() string {
	return "MultiStepLR"
}

// StepLRScheduler reduces the learning rate by gamma every stepSize epochs.
type StepLRScheduler struct {
	StepSize int
	Gamma    float64
}

// NewStepLRScheduler creates a fixed-interval decay scheduler.
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// ConstantLRScheduler maintains the base learning rate.
type ConstantLRScheduler struct{}

func (s *ConstantLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR
}

func (s *ConstantLRScheduler) GetName() string {
	return "ConstantLR"
}
