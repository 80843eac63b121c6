package debias

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
)

// smallConfig keeps trainer tests fast.
func smallConfig(debias bool) Config {
	return Config{
		Features:        3,
		HiddenUnits:     8,
		Seed:            42,
		Debias:          debias,
		Epochs:          4,
		PretrainEpochs:  3,
		AdversaryEpochs: 3,
		BatchSize:       32,
	}
}

func fitted(t *testing.T, cfg Config, ds *Dataset) *Trainer {
	t.Helper()
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Fit(context.Background(), ds))
	return tr
}

func phases(h []EpochStats) []Phase {
	out := make([]Phase, len(h))
	for i, s := range h {
		out[i] = s.Phase
	}
	return out
}

func TestNewTrainerDefaults(t *testing.T) {
	tr, err := NewTrainer(Config{Features: 2})
	require.NoError(t, err)

	cfg := tr.Config()
	assert.Equal(t, DefaultHiddenUnits, cfg.HiddenUnits)
	assert.Equal(t, DefaultEpochs, cfg.Epochs)
	assert.Equal(t, DemographicParity, cfg.Variant)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, Uninitialized, tr.Phase())
	assert.Len(t, tr.Snapshot().Predictor, predictorSize(2, DefaultHiddenUnits))
	assert.Nil(t, tr.Snapshot().Adversary)
}

func TestNewTrainerInvalidConfig(t *testing.T) {
	_, err := NewTrainer(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTrainer(Config{Features: 2, BatchSize: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewTrainerCreatesAdversaryOnlyWhenDebiasing(t *testing.T) {
	plain, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)
	assert.Nil(t, plain.adv)

	deb, err := NewTrainer(smallConfig(true))
	require.NoError(t, err)
	require.NotNil(t, deb.adv)
	assert.Len(t, deb.Snapshot().Adversary, DemographicParity.inputs()+2)

	cfg := smallConfig(true)
	cfg.Variant = EqualizedOdds
	eo, err := NewTrainer(cfg)
	require.NoError(t, err)
	assert.Len(t, eo.Snapshot().Adversary, EqualizedOdds.inputs()+2)
}

func TestPredictBeforeFit(t *testing.T) {
	tr, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)
	ds := makeDataset(t, 10, 3, 1)

	_, err = tr.Predict(ds)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = tr.PredictProba(ds)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestFitShapeMismatch(t *testing.T) {
	tr, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)

	err = tr.Fit(context.Background(), makeDataset(t, 20, 2, 1))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, Uninitialized, tr.Phase(), "rejected input must not start training")
}

func TestFitEmpty(t *testing.T) {
	tr, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Fit(context.Background(), nil), ErrEmptyDataset)
}

func TestPredictShapeMismatch(t *testing.T) {
	tr := fitted(t, smallConfig(false), makeDataset(t, 100, 3, 1))
	_, err := tr.Predict(makeDataset(t, 10, 4, 2))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFitTwice(t *testing.T) {
	ds := makeDataset(t, 100, 3, 1)
	tr := fitted(t, smallConfig(false), ds)
	err := tr.Fit(context.Background(), ds)
	assert.ErrorIs(t, err, ErrAlreadyFitted)
	assert.Equal(t, Fitted, tr.Phase())
}

func TestFitWithoutDebiasing(t *testing.T) {
	cfg := smallConfig(false)
	tr := fitted(t, cfg, makeDataset(t, 100, 3, 1))

	assert.Equal(t, Fitted, tr.Phase())
	assert.Nil(t, tr.Snapshot().Adversary)

	h := tr.History()
	require.Len(t, h, cfg.Epochs)
	for i, s := range h {
		assert.Equal(t, PretrainingPredictor, s.Phase)
		assert.Equal(t, i+1, s.Epoch)
		assert.Zero(t, s.AdversaryLoss)
		assert.Zero(t, s.AdversaryWeight)
	}
}

func TestFitWithDebiasingPhases(t *testing.T) {
	cfg := smallConfig(true)
	tr := fitted(t, cfg, makeDataset(t, 100, 3, 1))
	assert.Equal(t, Fitted, tr.Phase())

	got := phases(tr.History())
	counts := map[Phase]int{}
	for i, p := range got {
		counts[p]++
		if i > 0 {
			assert.GreaterOrEqual(t, p, got[i-1], "phases must not go backwards")
		}
	}
	assert.Equal(t, cfg.PretrainEpochs, counts[PretrainingPredictor])
	assert.GreaterOrEqual(t, counts[PretrainingAdversary], 1)
	assert.LessOrEqual(t, counts[PretrainingAdversary], cfg.AdversaryEpochs)
	assert.Equal(t, cfg.Epochs, counts[AdversarialTraining])
}

func TestAdversaryWeightNonIncreasing(t *testing.T) {
	cfg := smallConfig(true)
	cfg.Epochs = 8
	cfg.AdversaryWeightDecay = 0.1
	tr := fitted(t, cfg, makeDataset(t, 100, 3, 1))

	prev := math.Inf(1)
	for _, s := range tr.History() {
		if s.Phase != AdversarialTraining {
			continue
		}
		assert.LessOrEqual(t, s.AdversaryWeight, prev)
		assert.Greater(t, s.AdversaryWeight, 0.0)
		prev = s.AdversaryWeight
	}
	assert.Less(t, prev, tr.Config().AdversaryWeight)
}

func TestFitDeterministic(t *testing.T) {
	ds := makeDataset(t, 120, 3, 5)
	for _, variant := range []Variant{DemographicParity, EqualizedOdds} {
		t.Run(variant.String(), func(t *testing.T) {
			cfg := smallConfig(true)
			cfg.Variant = variant
			a := fitted(t, cfg, ds)
			b := fitted(t, cfg, ds)

			if diff := cmp.Diff(a.Snapshot(), b.Snapshot()); diff != "" {
				t.Errorf("parameters differ between runs (-first +second):\n%s", diff)
			}
			if diff := cmp.Diff(a.History(), b.History()); diff != "" {
				t.Errorf("history differs between runs (-first +second):\n%s", diff)
			}
		})
	}
}

func TestFitSeedChangesParameters(t *testing.T) {
	ds := makeDataset(t, 60, 3, 5)
	cfg := smallConfig(false)
	a := fitted(t, cfg, ds)
	cfg.Seed++
	b := fitted(t, cfg, ds)
	assert.NotEqual(t, a.Snapshot().Predictor, b.Snapshot().Predictor)
}

func TestFitUpdatesParameters(t *testing.T) {
	tr, err := NewTrainer(smallConfig(true))
	require.NoError(t, err)
	before := tr.Snapshot()
	require.NoError(t, tr.Fit(context.Background(), makeDataset(t, 80, 3, 2)))
	after := tr.Snapshot()

	assert.NotEqual(t, before.Predictor, after.Predictor)
	assert.NotEqual(t, before.Adversary, after.Adversary)
}

func TestPredictIdempotent(t *testing.T) {
	ds := makeDataset(t, 100, 3, 1)
	tr := fitted(t, smallConfig(true), ds)
	snap := tr.Snapshot()

	first, err := tr.Predict(ds)
	require.NoError(t, err)
	second, err := tr.Predict(ds)
	require.NoError(t, err)

	assert.Equal(t, first.Labels(), second.Labels())
	assert.Equal(t, first.Scores(), second.Scores())
	assert.Empty(t, cmp.Diff(snap, tr.Snapshot()), "prediction must not touch parameters")
	assert.Equal(t, Fitted, tr.Phase())
}

func TestPredictAttachesLabels(t *testing.T) {
	ds := makeDataset(t, 50, 3, 1)
	tr := fitted(t, smallConfig(false), ds)

	out, err := tr.Predict(ds)
	require.NoError(t, err)
	probs, err := tr.PredictProba(ds)
	require.NoError(t, err)

	require.Equal(t, ds.Len(), out.Len())
	assert.Equal(t, ds.Protected(), out.Protected())
	assert.Equal(t, probs, out.Scores())
	for i, p := range probs {
		assert.True(t, p >= 0 && p <= 1)
		want := 0.0
		if p > 0.5 {
			want = 1
		}
		assert.Equal(t, want, out.Sample(i).Label())
		assert.Equal(t, ds.Sample(i).Features(), out.Sample(i).Features())
	}
}

func TestFitLearnsSignal(t *testing.T) {
	ds := makeDataset(t, 400, 3, 9)
	cfg := smallConfig(false)
	cfg.Epochs = 20
	tr := fitted(t, cfg, ds)

	h := tr.History()
	assert.Less(t, h[len(h)-1].ClassifierLoss, h[0].ClassifierLoss)

	out, err := tr.Predict(ds)
	require.NoError(t, err)
	var correct int
	for i, y := range ds.Labels() {
		if out.Sample(i).Label() == y {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(ds.Len()), 0.7)
}

func TestFitNumericInstability(t *testing.T) {
	for _, debias := range []bool{false, true} {
		tr, err := NewTrainer(smallConfig(debias))
		require.NoError(t, err)
		tr.pred.params[len(tr.pred.params)-1] = math.NaN()

		err = tr.Fit(context.Background(), makeDataset(t, 40, 3, 1))
		assert.ErrorIs(t, err, ErrNumericInstability)
		assert.Equal(t, Aborted, tr.Phase())

		_, err = tr.Predict(makeDataset(t, 5, 3, 2))
		assert.ErrorIs(t, err, ErrNotFitted, "an aborted fit leaves no usable model")
	}
}

func TestFitCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := NewTrainer(smallConfig(true))
	require.NoError(t, err)
	err = tr.Fit(ctx, makeDataset(t, 40, 3, 1))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Aborted, tr.Phase())
	assert.Empty(t, tr.History())

	err = tr.Fit(context.Background(), makeDataset(t, 40, 3, 1))
	assert.ErrorIs(t, err, ErrAlreadyFitted)
}

func TestFitWithProjection(t *testing.T) {
	cfg := smallConfig(true)
	cfg.Projection = true
	ds := makeDataset(t, 80, 3, 1)
	tr := fitted(t, cfg, ds)
	assert.Equal(t, Fitted, tr.Phase())

	plain := fitted(t, smallConfig(true), ds)
	assert.NotEqual(t, plain.Snapshot().Predictor, tr.Snapshot().Predictor,
		"projection changes the predictor update")
}

func TestProjectRemovesAdversaryDirection(t *testing.T) {
	g := []float64{3, 1, -2}
	dir := []float64{1, 2, 2}
	project(g, dir, make([]float64, 3))

	assert.InDelta(t, 0, floats.Dot(g, dir), 1e-9)
	// 3 + 2 - 4 = 1 along dir, |dir|² = 9.
	assert.InDeltaSlice(t, []float64{3 - 1.0/9, 1 - 2.0/9, -2 - 2.0/9}, g, 1e-9)
}

func TestProjectZeroDirection(t *testing.T) {
	g := []float64{1, 2}
	project(g, []float64{0, 0}, make([]float64, 2))
	assert.Equal(t, []float64{1, 2}, g)
}

func TestPredictorTensorsPartitionParams(t *testing.T) {
	tr, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)

	ranges := tr.pred.tensors()
	require.Len(t, ranges, 4)
	assert.Equal(t, 0, ranges[0][0])
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1][1], ranges[i][0])
	}
	assert.Equal(t, len(tr.pred.params), ranges[3][1])
	assert.Equal(t, 3*8, ranges[0][1]-ranges[0][0])
	assert.Equal(t, 1, ranges[3][1]-ranges[3][0])
}

func TestAdversaryConvergedFlag(t *testing.T) {
	cfg := smallConfig(true)
	cfg.AdversaryEpochs = 50
	cfg.AdversaryTolerance = 1
	tr := fitted(t, cfg, makeDataset(t, 80, 3, 1))

	assert.True(t, tr.AdversaryConverged())
	var n int
	for _, s := range tr.History() {
		if s.Phase == PretrainingAdversary {
			n++
		}
	}
	assert.Equal(t, 2, n, "a tolerance of 1 stops at the first comparison")

	plain := fitted(t, smallConfig(false), makeDataset(t, 80, 3, 1))
	assert.False(t, plain.AdversaryConverged())
}

func TestBatcherCoversEveryRow(t *testing.T) {
	ds := makeDataset(t, 10, 3, 1)
	tr, err := NewTrainer(smallConfig(false))
	require.NoError(t, err)

	b := newBatcher(ds, 4, tr.rng)
	assert.Equal(t, 3, b.batches())

	batches := b.epoch()
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[2].len())

	seen := map[float64]int{}
	for _, bt := range batches {
		r, _ := bt.x.Dims()
		for i := 0; i < r; i++ {
			seen[bt.x.At(i, 0)]++
		}
	}
	assert.Len(t, seen, 10)
}

func TestFitLogsOptimizerProgress(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := smallConfig(true)
	cfg.Logger = zap.New(core)
	cfg.BatchSize = 25
	fitted(t, cfg, makeDataset(t, 100, 3, 1))

	epochs := logs.FilterMessage("epoch finished").All()
	require.NotEmpty(t, epochs)
	first := epochs[0].ContextMap()
	assert.Equal(t, int64(4), first["steps"], "4 batches in the first epoch")
	assert.Equal(t, "PretrainingPredictor", first["phase"])
	assert.Contains(t, first, "lr")

	pretrained := logs.FilterMessage("adversary pretrained").All()
	require.Len(t, pretrained, 1)
	assert.Contains(t, pretrained[0].ContextMap(), "converged")
}
