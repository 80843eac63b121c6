package debias

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Dataset is an ordered, immutable sequence of samples sharing one feature
// dimensionality. Predictions attach scores alongside the predicted labels.
type Dataset struct {
	samples []Sample
	scores  []float64
	dim     int
}

// NewDataset builds a dataset from samples. All samples must have the same
// dimensionality; an empty slice returns ErrEmptyDataset.
func NewDataset(samples []Sample) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	dim := samples[0].Dim()
	for i, s := range samples {
		if s.Dim() == 0 {
			return nil, fmt.Errorf("%w: sample %d has no features", ErrInvalidSample, i)
		}
		if s.Dim() != dim {
			return nil, fmt.Errorf("%w: sample %d has %d features, want %d",
				ErrShapeMismatch, i, s.Dim(), dim)
		}
	}
	return &Dataset{samples: slices.Clone(samples), dim: dim}, nil
}

// FromMatrix builds a dataset from a feature matrix (one row per sample),
// labels and protected attributes.
func FromMatrix(x mat.Matrix, labels, protected []float64) (*Dataset, error) {
	r, c := x.Dims()
	if r != len(labels) || r != len(protected) {
		return nil, fmt.Errorf("%w: %d rows, %d labels, %d protected values",
			ErrShapeMismatch, r, len(labels), len(protected))
	}
	samples := make([]Sample, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		s, err := NewSample(row, labels[i], protected[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		samples[i] = s
	}
	return NewDataset(samples)
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// Dim returns the feature dimensionality.
func (d *Dataset) Dim() int {
	return d.dim
}

// Sample returns the i-th sample.
func (d *Dataset) Sample(i int) Sample {
	return d.samples[i]
}

// Features returns a new n×dim matrix of the feature vectors.
func (d *Dataset) Features() *mat.Dense {
	x := mat.NewDense(len(d.samples), d.dim, nil)
	for i, s := range d.samples {
		x.SetRow(i, s.features)
	}
	return x
}

// Labels returns a copy of the labels in sample order.
func (d *Dataset) Labels() []float64 {
	out := make([]float64, len(d.samples))
	for i, s := range d.samples {
		out[i] = s.label
	}
	return out
}

// Protected returns a copy of the protected attributes in sample order.
func (d *Dataset) Protected() []float64 {
	out := make([]float64, len(d.samples))
	for i, s := range d.samples {
		out[i] = s.protected
	}
	return out
}

// Scores returns a copy of the predicted probabilities, or nil if the
// dataset was not produced by a prediction.
func (d *Dataset) Scores() []float64 {
	return slices.Clone(d.scores)
}

// WithFeatures returns a dataset with the same labels and protected
// attributes but the feature matrix replaced by x.
func (d *Dataset) WithFeatures(x mat.Matrix) (*Dataset, error) {
	r, _ := x.Dims()
	if r != len(d.samples) {
		return nil, fmt.Errorf("%w: %d rows for %d samples", ErrShapeMismatch, r, len(d.samples))
	}
	out, err := FromMatrix(x, d.Labels(), d.Protected())
	if err != nil {
		return nil, err
	}
	out.scores = slices.Clone(d.scores)
	return out, nil
}

// WithPredictions returns a copy of the dataset whose labels are replaced by
// predicted labels, with the matching scores attached.
func (d *Dataset) WithPredictions(labels, scores []float64) (*Dataset, error) {
	if len(labels) != len(d.samples) || (scores != nil && len(scores) != len(d.samples)) {
		return nil, fmt.Errorf("%w: %d labels, %d scores for %d samples",
			ErrShapeMismatch, len(labels), len(scores), len(d.samples))
	}
	samples := make([]Sample, len(d.samples))
	for i, s := range d.samples {
		if !isBinary(labels[i]) {
			return nil, fmt.Errorf("%w: predicted label %v at %d", ErrInvalidSample, labels[i], i)
		}
		samples[i] = s.withLabel(labels[i])
	}
	return &Dataset{samples: samples, scores: slices.Clone(scores), dim: d.dim}, nil
}

// Split partitions the dataset into disjoint train and test subsets.
// ratio is the fraction of samples that go to train (0 < ratio < 1).
// When shuffle is set the order is permuted with a rand source seeded by
// seed, so equal seeds give equal splits.
func (d *Dataset) Split(ratio float64, shuffle bool, seed int64) (train, test *Dataset, err error) {
	if !(ratio > 0 && ratio < 1) {
		return nil, nil, fmt.Errorf("%w: split ratio %v out of range (0, 1)", ErrInvalidConfig, ratio)
	}
	n := len(d.samples)
	cut := int(math.Round(ratio * float64(n)))
	if cut == 0 || cut == n {
		return nil, nil, fmt.Errorf("%w: split of %d samples at %v leaves an empty side",
			ErrEmptyDataset, n, ratio)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	return d.subset(order[:cut]), d.subset(order[cut:]), nil
}

// subset returns the samples at idx, in idx order.
func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{samples: make([]Sample, len(idx)), dim: d.dim}
	if d.scores != nil {
		out.scores = make([]float64, len(idx))
	}
	for i, j := range idx {
		out.samples[i] = d.samples[j]
		if d.scores != nil {
			out.scores[i] = d.scores[j]
		}
	}
	return out
}
