package debias_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sky-flux/debias"
	"github.com/sky-flux/debias/datasets"
	"github.com/sky-flux/debias/fairness"
	"github.com/sky-flux/debias/preprocessing"
)

// scaledSplit generates 1000 samples with a 30% outcome gap, splits them
// 70/30 and standardises both sides with the train statistics.
func scaledSplit(t *testing.T, seed int64) (train, test *debias.Dataset) {
	t.Helper()
	ds, err := datasets.Synthetic(datasets.SyntheticConfig{Samples: 1000, Disparity: 0.3, Seed: seed})
	require.NoError(t, err)
	labelMD, err := fairness.MeanDifference(ds)
	require.NoError(t, err)
	require.InDelta(t, -0.3, labelMD, 1e-9)

	train, test, err = ds.Split(0.7, true, seed)
	require.NoError(t, err)
	scaler := preprocessing.NewStandardScaler()
	train, err = scaler.FitTransform(train)
	require.NoError(t, err)
	test, err = scaler.Transform(test)
	require.NoError(t, err)
	return train, test
}

func fit(t *testing.T, train *debias.Dataset, seed int64, debiasOn bool) *debias.Trainer {
	t.Helper()
	tr, err := debias.NewTrainer(debias.Config{
		Features: train.Dim(),
		Seed:     seed,
		Debias:   debiasOn,
	})
	require.NoError(t, err)
	require.NoError(t, tr.Fit(context.Background(), train))
	require.Equal(t, debias.Fitted, tr.Phase())
	return tr
}

func heldOutMeanDifference(t *testing.T, tr *debias.Trainer, test *debias.Dataset) float64 {
	t.Helper()
	pred, err := tr.Predict(test)
	require.NoError(t, err)
	md, err := fairness.MeanDifference(pred)
	require.NoError(t, err)
	return md
}

func TestDebiasingShrinksHeldOutMeanDifference(t *testing.T) {
	if testing.Short() {
		t.Skip("trains two full models per seed")
	}

	for _, seed := range []int64{1, 2, 3, 5, 7} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			train, test := scaledSplit(t, seed)

			plain := heldOutMeanDifference(t, fit(t, train, seed, false), test)
			debiased := heldOutMeanDifference(t, fit(t, train, seed, true), test)
			t.Logf("held-out mean difference: plain %.4f, debiased %.4f", plain, debiased)

			assert.Less(t, plain, 0.0, "the plain model reproduces the label gap")
			assert.Less(t, math.Abs(debiased), math.Abs(plain))
		})
	}
}

func TestAdversaryPretrainingLearnsProtectedAttribute(t *testing.T) {
	train, _ := scaledSplit(t, 7)
	tr := fit(t, train, 7, true)

	var losses []float64
	for _, s := range tr.History() {
		if s.Phase == debias.PretrainingAdversary {
			losses = append(losses, s.AdversaryLoss)
		}
	}
	require.NotEmpty(t, losses)
	t.Logf("adversary pretraining loss: first %.4f, last %.4f, converged %v",
		losses[0], losses[len(losses)-1], tr.AdversaryConverged())

	// ln 2 is the loss of guessing the balanced protected attribute.
	assert.Less(t, losses[len(losses)-1], math.Ln2-0.02)
	if !tr.AdversaryConverged() {
		assert.Len(t, losses, debias.DefaultAdversaryEpochs)
	}
}
