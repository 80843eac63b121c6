package fairness

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/sky-flux/debias"
)

// Groups names the privileged protected-attribute value and the favourable
// label.
type Groups struct {
	Privileged float64 `json:"privileged" yaml:"privileged"`
	Favorable  float64 `json:"favorable" yaml:"favorable"`
}

// DefaultGroups treats protected = 1 as privileged and label 1 as favourable.
var DefaultGroups = Groups{Privileged: 1, Favorable: 1}

// DatasetReport summarises the outcome rates of one dataset.
type DatasetReport struct {
	Samples          int     `json:"samples" yaml:"samples"`
	BaseRate         float64 `json:"base_rate" yaml:"base_rate"`
	UnprivilegedRate float64 `json:"unprivileged_rate" yaml:"unprivileged_rate"`
	PrivilegedRate   float64 `json:"privileged_rate" yaml:"privileged_rate"`
	MeanDifference   float64 `json:"mean_difference" yaml:"mean_difference"`
	DisparateImpact  float64 `json:"disparate_impact" yaml:"disparate_impact"`
}

// MeanDifference is DefaultGroups.MeanDifference.
func MeanDifference(ds *debias.Dataset) (float64, error) {
	return DefaultGroups.MeanDifference(ds)
}

// DisparateImpact is DefaultGroups.DisparateImpact.
func DisparateImpact(ds *debias.Dataset) (float64, error) {
	return DefaultGroups.DisparateImpact(ds)
}

// Describe is DefaultGroups.Describe.
func Describe(ds *debias.Dataset) (DatasetReport, error) {
	return DefaultGroups.Describe(ds)
}

// MeanDifference returns P(y=fav | unprivileged) − P(y=fav | privileged).
// Negative values mean the unprivileged group receives fewer favourable
// outcomes.
func (g Groups) MeanDifference(ds *debias.Dataset) (float64, error) {
	unpriv, priv, err := g.rates(ds)
	if err != nil {
		return 0, err
	}
	return unpriv - priv, nil
}

// DisparateImpact returns P(y=fav | unprivileged) / P(y=fav | privileged).
// It is NaN when neither group has favourable outcomes and +Inf when only
// the unprivileged group has.
func (g Groups) DisparateImpact(ds *debias.Dataset) (float64, error) {
	unpriv, priv, err := g.rates(ds)
	if err != nil {
		return 0, err
	}
	return unpriv / priv, nil
}

// Describe computes every dataset metric at once.
func (g Groups) Describe(ds *debias.Dataset) (DatasetReport, error) {
	unpriv, priv, err := g.rates(ds)
	if err != nil {
		return DatasetReport{}, err
	}
	return DatasetReport{
		Samples:          ds.Len(),
		BaseRate:         stat.Mean(g.favourable(ds.Labels()), nil),
		UnprivilegedRate: unpriv,
		PrivilegedRate:   priv,
		MeanDifference:   unpriv - priv,
		DisparateImpact:  unpriv / priv,
	}, nil
}

// rates returns the favourable-outcome rate of each group.
func (g Groups) rates(ds *debias.Dataset) (unpriv, priv float64, err error) {
	if ds == nil || ds.Len() == 0 {
		return 0, 0, debias.ErrEmptyDataset
	}
	fav := g.favourable(ds.Labels())
	uw, pw := g.membership(ds.Protected())
	if stat.Mean(uw, nil) == 0 {
		return 0, 0, fmt.Errorf("%w: unprivileged", ErrEmptyGroup)
	}
	if stat.Mean(pw, nil) == 0 {
		return 0, 0, fmt.Errorf("%w: privileged", ErrEmptyGroup)
	}
	return stat.Mean(fav, uw), stat.Mean(fav, pw), nil
}

// favourable maps labels to 1 for the favourable label and 0 otherwise.
func (g Groups) favourable(labels []float64) []float64 {
	out := make([]float64, len(labels))
	for i, y := range labels {
		if y == g.Favorable {
			out[i] = 1
		}
	}
	return out
}

// membership returns 0/1 weight vectors selecting each group.
func (g Groups) membership(protected []float64) (unpriv, priv []float64) {
	unpriv = make([]float64, len(protected))
	priv = make([]float64, len(protected))
	for i, z := range protected {
		if z == g.Privileged {
			priv[i] = 1
		} else {
			unpriv[i] = 1
		}
	}
	return unpriv, priv
}
