package debias

import (
	"fmt"
	"slices"
)

// Sample is one labelled observation. It is immutable once created:
// the feature vector is copied on the way in and on the way out.
type Sample struct {
	features  []float64
	label     float64
	protected float64
}

// NewSample creates a sample from a feature vector, a binary label and a
// binary protected attribute. Label and protected must be 0 or 1.
func NewSample(features []float64, label, protected float64) (Sample, error) {
	if len(features) == 0 {
		return Sample{}, fmt.Errorf("%w: no features", ErrInvalidSample)
	}
	if !isBinary(label) {
		return Sample{}, fmt.Errorf("%w: label %v is not 0 or 1", ErrInvalidSample, label)
	}
	if !isBinary(protected) {
		return Sample{}, fmt.Errorf("%w: protected attribute %v is not 0 or 1", ErrInvalidSample, protected)
	}
	return Sample{
		features:  slices.Clone(features),
		label:     label,
		protected: protected,
	}, nil
}

// Features returns a copy of the feature vector.
func (s Sample) Features() []float64 {
	return slices.Clone(s.features)
}

// Feature returns the i-th feature.
func (s Sample) Feature(i int) float64 {
	return s.features[i]
}

// Dim returns the feature dimensionality.
func (s Sample) Dim() int {
	return len(s.features)
}

// Label returns the binary label.
func (s Sample) Label() float64 {
	return s.label
}

// Protected returns the binary protected attribute.
func (s Sample) Protected() float64 {
	return s.protected
}

// withLabel returns a copy of the sample carrying a different label.
// The feature slice is shared, which is safe because samples never mutate it.
func (s Sample) withLabel(label float64) Sample {
	out := s
	out.label = label
	return out
}

func isBinary(v float64) bool {
	return v == 0 || v == 1
}
