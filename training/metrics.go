package training

import (
	"time"
)

// EpochMetrics holds the results of a single epoch.
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64 // percent
	ValidAccuracy float64 // percent
	Threshold     float64 // correction threshold after this epoch
	Relabeled     int     // working labels changed by this epoch's correction
	Duration      time.Duration
}

// countCorrect returns how many rows of a raw score batch have their argmax
// at the corresponding label.
func countCorrect(scores []float32, labels []int, numClasses int) int {
	correct := 0
	for i, label := range labels {
		row := scores[i*numClasses : (i+1)*numClasses]
		maxIdx := 0
		for j := 1; j < numClasses; j++ {
			if row[j] > row[maxIdx] {
				maxIdx = j
			}
		}
		if maxIdx == label {
			correct++
		}
	}
	return correct
}
