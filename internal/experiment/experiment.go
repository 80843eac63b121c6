// Package experiment runs the plain-versus-debiased comparison: generate
// data, split, scale, fit one trainer without and one with the adversary,
// and evaluate both on the held-out split.
package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sky-flux/debias"
	"github.com/sky-flux/debias/datasets"
	"github.com/sky-flux/debias/fairness"
	"github.com/sky-flux/debias/preprocessing"
)

// DefaultSplit is the train fraction used when Settings.Split is zero.
const DefaultSplit = 0.7

// Settings configures one experiment. Trainer.Features and Trainer.Debias
// are set by Run.
type Settings struct {
	Data    datasets.SyntheticConfig `json:"data" yaml:"data" mapstructure:"data"`
	Split   float64                  `json:"split" yaml:"split" mapstructure:"split"`
	Trainer debias.Config            `json:"trainer" yaml:"trainer" mapstructure:"trainer"`
}

// Model is the outcome of one trained model.
type Model struct {
	Debias    bool                `json:"debias" yaml:"debias"`
	Epochs    int                 `json:"epochs" yaml:"epochs"`
	FinalLoss float64             `json:"final_loss" yaml:"final_loss"`
	Report    fairness.Report     `json:"report" yaml:"report"`
	History   []debias.EpochStats `json:"-" yaml:"-"`
}

// Result is everything the experiment measured.
type Result struct {
	Train    fairness.DatasetReport `json:"train" yaml:"train"`
	Test     fairness.DatasetReport `json:"test" yaml:"test"`
	Plain    Model                  `json:"plain" yaml:"plain"`
	Debiased Model                  `json:"debiased" yaml:"debiased"`
}

// Run executes the experiment.
func Run(ctx context.Context, s Settings, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	split := s.Split
	if split == 0 {
		split = DefaultSplit
	}

	ds, err := datasets.Synthetic(s.Data)
	if err != nil {
		return nil, fmt.Errorf("generate data: %w", err)
	}
	train, test, err := ds.Split(split, true, s.Data.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	res := &Result{}
	if res.Train, err = fairness.Describe(train); err != nil {
		return nil, fmt.Errorf("describe train: %w", err)
	}
	if res.Test, err = fairness.Describe(test); err != nil {
		return nil, fmt.Errorf("describe test: %w", err)
	}
	log.Info("data ready",
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
		zap.Float64("train_mean_difference", res.Train.MeanDifference))

	scaler := preprocessing.NewStandardScaler()
	trainScaled, err := scaler.FitTransform(train)
	if err != nil {
		return nil, fmt.Errorf("scale train: %w", err)
	}
	testScaled, err := scaler.Transform(test)
	if err != nil {
		return nil, fmt.Errorf("scale test: %w", err)
	}

	if res.Plain, err = fitModel(ctx, s.Trainer, false, trainScaled, testScaled, log); err != nil {
		return nil, err
	}
	if res.Debiased, err = fitModel(ctx, s.Trainer, true, trainScaled, testScaled, log); err != nil {
		return nil, err
	}
	return res, nil
}

func fitModel(ctx context.Context, cfg debias.Config, debiasOn bool, train, test *debias.Dataset, log *zap.Logger) (Model, error) {
	name := "plain"
	if debiasOn {
		name = "debiased"
	}
	cfg.Features = train.Dim()
	cfg.Debias = debiasOn
	cfg.Logger = log.Named(name)

	tr, err := debias.NewTrainer(cfg)
	if err != nil {
		return Model{}, fmt.Errorf("%s trainer: %w", name, err)
	}
	if err := tr.Fit(ctx, train); err != nil {
		return Model{}, fmt.Errorf("%s fit: %w", name, err)
	}
	pred, err := tr.Predict(test)
	if err != nil {
		return Model{}, fmt.Errorf("%s predict: %w", name, err)
	}
	report, err := fairness.Evaluate(test, pred)
	if err != nil {
		return Model{}, fmt.Errorf("%s evaluate: %w", name, err)
	}

	history := tr.History()
	m := Model{Debias: debiasOn, Epochs: len(history), Report: report, History: history}
	if len(history) > 0 {
		m.FinalLoss = history[len(history)-1].ClassifierLoss
	}
	return m, nil
}
