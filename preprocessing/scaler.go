// Package preprocessing transforms dataset features before training.
package preprocessing

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sky-flux/debias"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("preprocessing: scaler is not fitted")

// StandardScaler standardises every feature column to zero mean and unit
// variance using the population standard deviation. Labels and protected
// attributes pass through unchanged, so group statistics are preserved.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit learns per-column means and standard deviations from ds.
// Columns with zero variance get a scale of 1.
func (s *StandardScaler) Fit(ds *debias.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return debias.ErrEmptyDataset
	}
	x := ds.Features()
	_, c := x.Dims()
	s.mean = make([]float64, c)
	s.scale = make([]float64, c)
	col := make([]float64, ds.Len())
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		m, sd := stat.PopMeanStdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		s.mean[j] = m
		s.scale[j] = sd
	}
	return nil
}

// Transform returns a copy of ds with standardised features.
func (s *StandardScaler) Transform(ds *debias.Dataset) (*debias.Dataset, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}
	if ds == nil || ds.Len() == 0 {
		return nil, debias.ErrEmptyDataset
	}
	if ds.Dim() != len(s.mean) {
		return nil, fmt.Errorf("%w: scaler fitted on %d features, got %d",
			debias.ErrShapeMismatch, len(s.mean), ds.Dim())
	}
	x := ds.Features()
	x.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, x)
	return ds.WithFeatures(x)
}

// FitTransform fits the scaler on ds and returns ds transformed.
func (s *StandardScaler) FitTransform(ds *debias.Dataset) (*debias.Dataset, error) {
	if err := s.Fit(ds); err != nil {
		return nil, err
	}
	return s.Transform(ds)
}

// Mean returns a copy of the fitted column means.
func (s *StandardScaler) Mean() []float64 {
	return append([]float64(nil), s.mean...)
}

// Scale returns a copy of the fitted column scales.
func (s *StandardScaler) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}
