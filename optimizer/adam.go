package optimizer

import (
	"fmt"
	"math"
)

// Adam implements the Adam optimizer with bias correction over a flat
// parameter vector of fixed length.
//
// Update rule:
//
//	m[i] = β1·m[i] + (1-β1)·g[i]
//	v[i] = β2·v[i] + (1-β2)·g[i]²
//	m̂[i] = m[i] / (1 - β1^t)
//	v̂[i] = v[i] / (1 - β2^t)
//	w[i] = w[i] - lr · m̂[i] / (√v̂[i] + ε)
type Adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         []float64
	step         int
}

// NewAdam creates an Adam optimizer for size parameters with the given
// learning rate. Uses standard defaults: β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(size int, lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float64, size),
		v:     make([]float64, size),
	}
}

// Update applies one Adam step to params in place.
// params and grads must both have the optimizer's size.
func (a *Adam) Update(params, grads []float64) error {
	if len(params) != len(a.m) || len(grads) != len(a.m) {
		return fmt.Errorf("%w: adam sized %d, got %d params and %d grads",
			ErrSizeMismatch, len(a.m), len(params), len(grads))
	}
	a.step++

	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, g := range grads {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / c1
		vHat := a.v[i] / c2

		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
	return nil
}

// SetLR updates the learning rate (used by schedules).
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.step
}
