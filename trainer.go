package debias

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sky-flux/debias/optimizer"
)

// projectionEps keeps the adversary gradient normalisation finite when the
// gradient vanishes.
const projectionEps = 1e-12

// Trainer fits a predictor, optionally against an adversary, and predicts
// labels once fitted. A Trainer is not safe for concurrent use; separate
// Trainers share no state.
type Trainer struct {
	cfg     Config
	log     *zap.Logger
	rng     *rand.Rand
	phase   Phase
	pred    *predictor
	adv     *adversary // nil unless cfg.Debias
	history []EpochStats

	advConverged bool
}

// Parameters is a copy of a trainer's weights.
type Parameters struct {
	Predictor []float64 `json:"predictor"`
	Adversary []float64 `json:"adversary,omitempty"` // nil when debiasing is disabled.
}

// NewTrainer validates cfg, fills defaults and initialises the model
// parameters from cfg.Seed. The adversary is only created when cfg.Debias
// is set.
func NewTrainer(cfg Config) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	t := &Trainer{
		cfg:   cfg,
		log:   cfg.Logger.With(zap.Bool("debias", cfg.Debias)),
		rng:   rng,
		phase: Uninitialized,
		pred:  newPredictor(cfg.Features, cfg.HiddenUnits, rng),
	}
	if cfg.Debias {
		t.adv = newAdversary(cfg.Variant, rng)
	}
	return t, nil
}

// Phase returns the current training phase.
func (t *Trainer) Phase() Phase {
	return t.phase
}

// Config returns the trainer's configuration with defaults applied.
func (t *Trainer) Config() Config {
	return t.cfg
}

// History returns the per-epoch statistics recorded so far.
func (t *Trainer) History() []EpochStats {
	return slices.Clone(t.history)
}

// AdversaryConverged reports whether adversary pretraining stopped on
// AdversaryTolerance rather than on the AdversaryEpochs limit.
func (t *Trainer) AdversaryConverged() bool {
	return t.advConverged
}

// Snapshot returns a copy of the current parameters.
func (t *Trainer) Snapshot() Parameters {
	p := Parameters{Predictor: slices.Clone(t.pred.params)}
	if t.adv != nil {
		p.Adversary = slices.Clone(t.adv.params)
	}
	return p
}

// Fit trains the model on ds. It can be called once per Trainer; a second
// call returns ErrAlreadyFitted.
//
// Without debiasing the predictor is trained for Epochs epochs. With
// debiasing the predictor is pretrained for PretrainEpochs, the adversary is
// pretrained against the frozen predictor, and both are then trained
// adversarially for Epochs epochs.
//
// A loss that becomes NaN or Inf aborts training with ErrNumericInstability.
// The context is checked between epochs. On any error the trainer moves to
// Aborted and cannot be used for prediction.
func (t *Trainer) Fit(ctx context.Context, ds *Dataset) error {
	if t.phase != Uninitialized {
		return fmt.Errorf("%w: phase %s", ErrAlreadyFitted, t.phase)
	}
	if ds == nil || ds.Len() == 0 {
		return ErrEmptyDataset
	}
	if ds.Dim() != t.cfg.Features {
		return fmt.Errorf("%w: dataset has %d features, model expects %d",
			ErrShapeMismatch, ds.Dim(), t.cfg.Features)
	}

	b := newBatcher(ds, t.cfg.BatchSize, t.rng)
	t.log.Info("fit started",
		zap.Int("samples", ds.Len()),
		zap.Int("features", ds.Dim()),
		zap.Int("batches_per_epoch", b.batches()))

	if err := t.fit(ctx, b); err != nil {
		t.phase = Aborted
		t.log.Error("fit aborted", zap.Error(err))
		return err
	}
	t.log.Info("fit finished", zap.Int("epochs", len(t.history)))
	return nil
}

func (t *Trainer) fit(ctx context.Context, b *batcher) error {
	if err := t.transition(PretrainingPredictor); err != nil {
		return err
	}
	epochs := t.cfg.Epochs
	if t.cfg.Debias {
		epochs = t.cfg.PretrainEpochs
	}
	predAdam := optimizer.NewAdam(len(t.pred.params), t.cfg.PredictorLR)
	if err := t.pretrainPredictor(ctx, b, predAdam, epochs); err != nil {
		return err
	}
	if !t.cfg.Debias {
		return t.transition(Fitted)
	}

	if err := t.transition(PretrainingAdversary); err != nil {
		return err
	}
	advAdam := optimizer.NewAdam(len(t.adv.params), t.cfg.AdversaryLR)
	if err := t.pretrainAdversary(ctx, b, advAdam); err != nil {
		return err
	}

	if err := t.transition(AdversarialTraining); err != nil {
		return err
	}
	if err := t.trainAdversarial(ctx, b, predAdam, advAdam); err != nil {
		return err
	}
	return t.transition(Fitted)
}

// pretrainPredictor minimises classification loss alone.
func (t *Trainer) pretrainPredictor(ctx context.Context, b *batcher, adam *optimizer.Adam, epochs int) error {
	lr := optimizer.NewCosineAnnealing(t.cfg.PredictorLR, epochs*b.batches())
	grad := make([]float64, len(t.pred.params))

	for epoch := 1; epoch <= epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var total float64
		for i, bt := range b.epoch() {
			pass := t.pred.forward(bt.x)
			dLogits := make([]float64, bt.len())
			loss := optimizer.MeanBCEWithLogits(pass.logits, bt.y, dLogits)
			if err := t.checkLoss("classifier", loss, epoch, i); err != nil {
				return err
			}
			total += loss * float64(bt.len())

			t.pred.backward(bt.x, pass, dLogits, grad)
			adam.SetLR(lr.Value())
			if err := adam.Update(t.pred.params, grad); err != nil {
				return err
			}
			lr.Step()
		}
		t.record(EpochStats{Phase: t.phase, Epoch: epoch, ClassifierLoss: total / float64(b.n)}, adam)
	}
	return t.checkParams()
}

// pretrainAdversary trains the adversary against the frozen predictor until
// its epoch loss stops improving by more than AdversaryTolerance, or for at
// most AdversaryEpochs epochs.
func (t *Trainer) pretrainAdversary(ctx context.Context, b *batcher, adam *optimizer.Adam) error {
	lr := optimizer.NewCosineAnnealing(t.cfg.AdversaryLR, t.cfg.AdversaryEpochs*b.batches())
	grad := make([]float64, len(t.adv.params))
	prev := math.Inf(1)
	var epoch int
	var advLoss float64

	for epoch = 1; epoch <= t.cfg.AdversaryEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var clsTotal, advTotal float64
		for i, bt := range b.epoch() {
			pass := t.pred.forward(bt.x)
			clsTotal += optimizer.MeanBCEWithLogits(pass.logits, bt.y, nil) * float64(bt.len())

			advPass := t.adv.forward(pass.logits, bt.y)
			dAdv := make([]float64, bt.len())
			batchLoss := optimizer.MeanBCEWithLogits(advPass.logits, bt.z, dAdv)
			if err := t.checkLoss("adversary", batchLoss, epoch, i); err != nil {
				return err
			}
			advTotal += batchLoss * float64(bt.len())

			t.adv.backward(pass.logits, bt.y, advPass, dAdv, grad)
			adam.SetLR(lr.Value())
			if err := adam.Update(t.adv.params, grad); err != nil {
				return err
			}
			lr.Step()
		}

		advLoss = advTotal / float64(b.n)
		t.record(EpochStats{
			Phase:          t.phase,
			Epoch:          epoch,
			ClassifierLoss: clsTotal / float64(b.n),
			AdversaryLoss:  advLoss,
		}, adam)
		if math.Abs(prev-advLoss) < t.cfg.AdversaryTolerance {
			t.advConverged = true
			break
		}
		prev = advLoss
	}
	t.log.Info("adversary pretrained",
		zap.Bool("converged", t.advConverged),
		zap.Int("epochs", min(epoch, t.cfg.AdversaryEpochs)),
		zap.Float64("adv_loss", advLoss))
	return t.checkParams()
}

// trainAdversarial runs the alternating minimax phase. For every batch the
// adversary descends its own loss, and the predictor descends
//
//	∇L_cls − α·∇L_adv
//
// and is pushed up the adversary's loss. α decays with the step count.
// With Projection set, the component of ∇L_cls along ∇L_adv is removed
// first, separately for each parameter tensor (W1, b1, w2, b2).
func (t *Trainer) trainAdversarial(ctx context.Context, b *batcher, predAdam, advAdam *optimizer.Adam) error {
	steps := t.cfg.Epochs * b.batches()
	predLR := optimizer.NewCosineAnnealing(t.cfg.PredictorLR, steps)
	advLR := optimizer.NewCosineAnnealing(t.cfg.AdversaryLR, steps)
	weight := optimizer.NewInverseDecay(t.cfg.AdversaryWeight, t.cfg.AdversaryWeightDecay)

	gCls := make([]float64, len(t.pred.params))
	gAdv := make([]float64, len(t.pred.params))
	unit := make([]float64, len(t.pred.params))
	tensors := t.pred.tensors()
	advGrad := make([]float64, len(t.adv.params))

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var clsTotal, advTotal float64
		for i, bt := range b.epoch() {
			pass := t.pred.forward(bt.x)
			dCls := make([]float64, bt.len())
			clsLoss := optimizer.MeanBCEWithLogits(pass.logits, bt.y, dCls)
			if err := t.checkLoss("classifier", clsLoss, epoch, i); err != nil {
				return err
			}

			advPass := t.adv.forward(pass.logits, bt.y)
			dAdv := make([]float64, bt.len())
			advLoss := optimizer.MeanBCEWithLogits(advPass.logits, bt.z, dAdv)
			if err := t.checkLoss("adversary", advLoss, epoch, i); err != nil {
				return err
			}
			clsTotal += clsLoss * float64(bt.len())
			advTotal += advLoss * float64(bt.len())

			dPred := t.adv.backward(pass.logits, bt.y, advPass, dAdv, advGrad)
			t.pred.backward(bt.x, pass, dCls, gCls)
			t.pred.backward(bt.x, pass, dPred, gAdv)

			if t.cfg.Projection {
				for _, r := range tensors {
					project(gCls[r[0]:r[1]], gAdv[r[0]:r[1]], unit[r[0]:r[1]])
				}
			}
			floats.AddScaled(gCls, -weight.Value(), gAdv)

			predAdam.SetLR(predLR.Value())
			if err := predAdam.Update(t.pred.params, gCls); err != nil {
				return err
			}
			advAdam.SetLR(advLR.Value())
			if err := advAdam.Update(t.adv.params, advGrad); err != nil {
				return err
			}
			predLR.Step()
			advLR.Step()
			weight.Step()
		}
		t.record(EpochStats{
			Phase:           t.phase,
			Epoch:           epoch,
			ClassifierLoss:  clsTotal / float64(b.n),
			AdversaryLoss:   advTotal / float64(b.n),
			AdversaryWeight: weight.Value(),
		}, predAdam)
	}
	return t.checkParams()
}

// project removes from g its component along dir, using unit as scratch.
func project(g, dir, unit []float64) {
	copy(unit, dir)
	floats.Scale(1/(floats.Norm(unit, 2)+projectionEps), unit)
	floats.AddScaled(g, -floats.Dot(g, unit), unit)
}

// PredictProba returns σ(logit) for every sample of ds. It has no side
// effects on the trainer.
func (t *Trainer) PredictProba(ds *Dataset) ([]float64, error) {
	if t.phase != Fitted {
		return nil, fmt.Errorf("%w: phase %s", ErrNotFitted, t.phase)
	}
	if ds == nil || ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if ds.Dim() != t.cfg.Features {
		return nil, fmt.Errorf("%w: dataset has %d features, model expects %d",
			ErrShapeMismatch, ds.Dim(), t.cfg.Features)
	}

	pass := t.pred.forward(ds.Features())
	probs := make([]float64, len(pass.logits))
	for i, z := range pass.logits {
		probs[i] = optimizer.Sigmoid(z)
	}
	return probs, nil
}

// Predict returns a copy of ds whose labels are the predicted labels
// (σ(logit) > 0.5) and whose scores are the predicted probabilities.
func (t *Trainer) Predict(ds *Dataset) (*Dataset, error) {
	probs, err := t.PredictProba(ds)
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return ds.WithPredictions(labels, probs)
}

func (t *Trainer) transition(to Phase) error {
	if !t.phase.canTransition(to) {
		return fmt.Errorf("debias: invalid phase transition %s → %s", t.phase, to)
	}
	t.log.Info("phase transition", zap.Stringer("from", t.phase), zap.Stringer("to", to))
	t.phase = to
	return nil
}

// record appends s to the history. adam is the optimizer stepped during the
// epoch; its step count and last learning rate are logged alongside.
func (t *Trainer) record(s EpochStats, adam *optimizer.Adam) {
	t.history = append(t.history, s)
	t.log.Debug("epoch finished",
		zap.Stringer("phase", s.Phase),
		zap.Int("epoch", s.Epoch),
		zap.Float64("loss", s.ClassifierLoss),
		zap.Float64("adv_loss", s.AdversaryLoss),
		zap.Float64("adv_weight", s.AdversaryWeight),
		zap.Int("steps", adam.Steps()),
		zap.Float64("lr", adam.LR()))
}

func (t *Trainer) checkLoss(name string, loss float64, epoch, batch int) error {
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return fmt.Errorf("%w: %s loss %v in %s epoch %d batch %d",
			ErrNumericInstability, name, loss, t.phase, epoch, batch)
	}
	return nil
}

// checkParams catches a non-finite update applied on the last batch of a
// phase, which no later loss would reveal.
func (t *Trainer) checkParams() error {
	if !allFinite(t.pred.params) {
		return fmt.Errorf("%w: predictor parameters after %s", ErrNumericInstability, t.phase)
	}
	if t.adv != nil && !allFinite(t.adv.params) {
		return fmt.Errorf("%w: adversary parameters after %s", ErrNumericInstability, t.phase)
	}
	return nil
}

// batch is one mini-batch gathered from the training set.
type batch struct {
	x    *mat.Dense
	y, z []float64
}

func (b batch) len() int {
	return len(b.y)
}

// batcher yields shuffled mini-batches each epoch. The shuffle draws from
// the trainer's seeded source, so batch order is reproducible.
type batcher struct {
	x     *mat.Dense
	y, z  []float64
	n     int
	size  int
	order []int
	rng   *rand.Rand
}

func newBatcher(ds *Dataset, size int, rng *rand.Rand) *batcher {
	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	return &batcher{
		x:     ds.Features(),
		y:     ds.Labels(),
		z:     ds.Protected(),
		n:     ds.Len(),
		size:  min(size, ds.Len()),
		order: order,
		rng:   rng,
	}
}

func (b *batcher) batches() int {
	return (b.n + b.size - 1) / b.size
}

// epoch reshuffles and returns the batches of one pass over the data.
// The last batch may be smaller than the batch size.
func (b *batcher) epoch() []batch {
	b.rng.Shuffle(b.n, func(i, j int) {
		b.order[i], b.order[j] = b.order[j], b.order[i]
	})

	_, dim := b.x.Dims()
	out := make([]batch, 0, b.batches())
	for start := 0; start < b.n; start += b.size {
		idx := b.order[start:min(start+b.size, b.n)]
		bt := batch{
			x: mat.NewDense(len(idx), dim, nil),
			y: make([]float64, len(idx)),
			z: make([]float64, len(idx)),
		}
		for r, i := range idx {
			bt.x.SetRow(r, b.x.RawRowView(i))
			bt.y[r] = b.y[i]
			bt.z[r] = b.z[i]
		}
		out = append(out, bt)
	}
	return out
}
