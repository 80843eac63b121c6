package optimizer

import "math"

// Schedule produces a value that evolves with the training step count.
// Value reports the current value; Step advances by one and returns the new one.
type Schedule interface {
	Value() float64
	Step() float64
}

// CosineAnnealing implements the cosine annealing learning rate schedule.
//
//	lr_t = 0.5 * lr_max * (1 + cos(π * t / T_max))
//
// Past T_max the rate stays at zero.
type CosineAnnealing struct {
	lrMax float64
	tMax  int
	t     int
}

// NewCosineAnnealing creates a cosine annealing scheduler.
func NewCosineAnnealing(lrMax float64, tMax int) *CosineAnnealing {
	return &CosineAnnealing{
		lrMax: lrMax,
		tMax:  max(tMax, 1),
	}
}

// Value returns the current learning rate.
func (ca *CosineAnnealing) Value() float64 {
	t := min(ca.t, ca.tMax)
	return 0.5 * ca.lrMax * (1 + math.Cos(math.Pi*float64(t)/float64(ca.tMax)))
}

// Step advances the schedule by one step and returns the new learning rate.
func (ca *CosineAnnealing) Step() float64 {
	ca.t++
	return ca.Value()
}

// InverseDecay decays a weight inversely with the step count:
//
//	w_t = w_0 / (1 + k·t)
//
// It is monotonically non-increasing for k ≥ 0.
type InverseDecay struct {
	initial float64
	rate    float64
	t       int
}

// NewInverseDecay creates an inverse decay schedule starting at initial.
func NewInverseDecay(initial, rate float64) *InverseDecay {
	return &InverseDecay{initial: initial, rate: rate}
}

// Value returns the current weight.
func (d *InverseDecay) Value() float64 {
	return d.initial / (1 + d.rate*float64(d.t))
}

// Step advances the schedule by one step and returns the new weight.
func (d *InverseDecay) Step() float64 {
	d.t++
	return d.Value()
}

// Compile-time interface checks.
var (
	_ Schedule = (*CosineAnnealing)(nil)
	_ Schedule = (*InverseDecay)(nil)
)
