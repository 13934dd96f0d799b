package correction

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax normalizes a raw score vector into a probability distribution.
// Scores are shifted by their maximum before exponentiation for numerical
// stability, so arbitrarily large logits are safe.
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	max := floats.Max(scores)
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	floats.Scale(1/sum, out)

	return out
}
