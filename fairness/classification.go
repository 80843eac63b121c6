package fairness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sky-flux/debias"
)

// Report holds classification and fairness metrics of predictions against
// ground truth. Rates with an empty denominator are NaN.
type Report struct {
	Accuracy                   float64 `json:"accuracy" yaml:"accuracy"`
	BalancedAccuracy           float64 `json:"balanced_accuracy" yaml:"balanced_accuracy"`
	TruePositiveRate           float64 `json:"true_positive_rate" yaml:"true_positive_rate"`
	TrueNegativeRate           float64 `json:"true_negative_rate" yaml:"true_negative_rate"`
	MeanDifference             float64 `json:"mean_difference" yaml:"mean_difference"`
	DisparateImpact            float64 `json:"disparate_impact" yaml:"disparate_impact"`
	EqualOpportunityDifference float64 `json:"equal_opportunity_difference" yaml:"equal_opportunity_difference"`
	AverageOddsDifference      float64 `json:"average_odds_difference" yaml:"average_odds_difference"`
	TheilIndex                 float64 `json:"theil_index" yaml:"theil_index"`
}

// confusion counts outcomes for one subset of samples.
type confusion struct {
	tp, fp, tn, fn float64
}

func (c confusion) total() float64 { return c.tp + c.fp + c.tn + c.fn }

func (c confusion) tpr() float64 { return ratio(c.tp, c.tp+c.fn) }

func (c confusion) tnr() float64 { return ratio(c.tn, c.tn+c.fp) }

func (c confusion) fpr() float64 { return ratio(c.fp, c.fp+c.tn) }

func (c confusion) selectionRate() float64 { return ratio(c.tp+c.fp, c.total()) }

// Evaluate is DefaultGroups.Evaluate.
func Evaluate(truth, pred *debias.Dataset) (Report, error) {
	return DefaultGroups.Evaluate(truth, pred)
}

// Evaluate compares the labels of pred against those of truth. Both
// datasets must hold the same samples in the same order, which is what
// Trainer.Predict returns.
func (g Groups) Evaluate(truth, pred *debias.Dataset) (Report, error) {
	if truth == nil || pred == nil || truth.Len() == 0 {
		return Report{}, debias.ErrEmptyDataset
	}
	if truth.Len() != pred.Len() {
		return Report{}, fmt.Errorf("%w: %d truth samples, %d predictions",
			debias.ErrShapeMismatch, truth.Len(), pred.Len())
	}

	y := truth.Labels()
	yHat := pred.Labels()
	zTruth := truth.Protected()
	zPred := pred.Protected()
	if !floats.Equal(zTruth, zPred) {
		return Report{}, fmt.Errorf("%w: protected attributes differ between truth and predictions",
			debias.ErrShapeMismatch)
	}

	var all, unpriv, priv confusion
	for i := range y {
		c := &unpriv
		if zTruth[i] == g.Privileged {
			c = &priv
		}
		g.count(c, y[i], yHat[i])
		g.count(&all, y[i], yHat[i])
	}
	if unpriv.total() == 0 {
		return Report{}, fmt.Errorf("%w: unprivileged", ErrEmptyGroup)
	}
	if priv.total() == 0 {
		return Report{}, fmt.Errorf("%w: privileged", ErrEmptyGroup)
	}

	tpr, tnr := all.tpr(), all.tnr()
	return Report{
		Accuracy:                   ratio(all.tp+all.tn, all.total()),
		BalancedAccuracy:           (tpr + tnr) / 2,
		TruePositiveRate:           tpr,
		TrueNegativeRate:           tnr,
		MeanDifference:             unpriv.selectionRate() - priv.selectionRate(),
		DisparateImpact:            unpriv.selectionRate() / priv.selectionRate(),
		EqualOpportunityDifference: unpriv.tpr() - priv.tpr(),
		AverageOddsDifference:      ((unpriv.fpr() - priv.fpr()) + (unpriv.tpr() - priv.tpr())) / 2,
		TheilIndex:                 g.theil(y, yHat),
	}, nil
}

func (g Groups) count(c *confusion, y, yHat float64) {
	actual := y == g.Favorable
	predicted := yHat == g.Favorable
	switch {
	case actual && predicted:
		c.tp++
	case !actual && predicted:
		c.fp++
	case !actual && !predicted:
		c.tn++
	default:
		c.fn++
	}
}

// theil computes the generalized entropy index with α = 1 over the benefits
// b_i = ŷ_i − y_i + 1 (favourable encoded as 1):
//
//	T = mean((b/μ)·ln(b/μ)), with 0·ln 0 = 0.
func (g Groups) theil(y, yHat []float64) float64 {
	b := make([]float64, len(y))
	for i := range y {
		b[i] = g.indicator(yHat[i]) - g.indicator(y[i]) + 1
	}
	mu := stat.Mean(b, nil)
	if mu == 0 {
		return 0
	}
	terms := make([]float64, len(b))
	for i, v := range b {
		if v > 0 {
			r := v / mu
			terms[i] = r * math.Log(r)
		}
	}
	return stat.Mean(terms, nil)
}

func (g Groups) indicator(label float64) float64 {
	if label == g.Favorable {
		return 1
	}
	return 0
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
