package optimizer

import "math"

// BCEWithLogits computes the binary cross-entropy of sigmoid(z) against y in
// a numerically stable form: max(z,0) - z*y + ln(1 + e^-|z|).
func BCEWithLogits(z, y float64) float64 {
	return math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
}

// MeanBCEWithLogits returns the batch-averaged BCEWithLogits loss and writes
// the gradient of that mean with respect to each logit into grad
// ((σ(z)-y)/n). grad may be nil. Returns 0 for an empty batch.
func MeanBCEWithLogits(logits, labels, grad []float64) float64 {
	n := len(logits)
	if n == 0 {
		return 0
	}
	var total float64
	for i, z := range logits {
		total += BCEWithLogits(z, labels[i])
		if grad != nil {
			grad[i] = (Sigmoid(z) - labels[i]) / float64(n)
		}
	}
	return total / float64(n)
}

// Sigmoid computes 1 / (1 + e^-z) without overflowing for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
