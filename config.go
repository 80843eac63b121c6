package debias

import (
	"fmt"

	"go.uber.org/zap"
)

// Default hyperparameters applied to zero-valued Config fields.
const (
	DefaultHiddenUnits          = 64
	DefaultEpochs               = 50
	DefaultPretrainEpochs       = 10
	DefaultAdversaryEpochs      = 20
	DefaultAdversaryTolerance   = 1e-4
	DefaultBatchSize            = 128
	DefaultPredictorLR          = 0.01
	DefaultAdversaryLR          = 0.1
	DefaultAdversaryWeight      = 1.0
	DefaultAdversaryWeightDecay = 0.005
)

// Config configures a Trainer. Zero values produce sensible defaults; see
// the Default* constants. Features is required.
type Config struct {
	Features             int     `json:"features" yaml:"features" mapstructure:"features"`                                           // required, > 0
	HiddenUnits          int     `json:"hidden_units" yaml:"hidden_units" mapstructure:"hidden_units"`                               // zero → 64
	Seed                 int64   `json:"seed" yaml:"seed" mapstructure:"seed"`                                                       // weight init and batch shuffling
	Debias               bool    `json:"debias" yaml:"debias" mapstructure:"debias"`                                                 // false → no adversary at all
	Variant              Variant `json:"variant" yaml:"variant" mapstructure:"variant"`                                              // zero → DemographicParity
	Epochs               int     `json:"epochs" yaml:"epochs" mapstructure:"epochs"`                                                 // zero → 50
	PretrainEpochs       int     `json:"pretrain_epochs" yaml:"pretrain_epochs" mapstructure:"pretrain_epochs"`                      // zero → 10; debias only
	AdversaryEpochs      int     `json:"adversary_epochs" yaml:"adversary_epochs" mapstructure:"adversary_epochs"`                   // zero → 20; upper bound on adversary pretraining
	AdversaryTolerance   float64 `json:"adversary_tolerance" yaml:"adversary_tolerance" mapstructure:"adversary_tolerance"`          // zero → 1e-4
	BatchSize            int     `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`                                     // zero → 128
	PredictorLR          float64 `json:"predictor_lr" yaml:"predictor_lr" mapstructure:"predictor_lr"`                               // zero → 0.01
	AdversaryLR          float64 `json:"adversary_lr" yaml:"adversary_lr" mapstructure:"adversary_lr"`                               // zero → 0.1
	AdversaryWeight      float64 `json:"adversary_weight" yaml:"adversary_weight" mapstructure:"adversary_weight"`                   // zero → 1.0
	AdversaryWeightDecay float64 `json:"adversary_weight_decay" yaml:"adversary_weight_decay" mapstructure:"adversary_weight_decay"` // zero → 0.005
	Projection           bool    `json:"projection" yaml:"projection" mapstructure:"projection"`                                     // project out the adversary direction per parameter tensor

	Logger *zap.Logger `json:"-" yaml:"-" mapstructure:"-"` // nil → no-op logger
}

// withDefaults returns a copy of cfg with zero-valued fields replaced.
func (cfg Config) withDefaults() Config {
	if cfg.HiddenUnits == 0 {
		cfg.HiddenUnits = DefaultHiddenUnits
	}
	if cfg.Variant == 0 {
		cfg.Variant = DemographicParity
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = DefaultEpochs
	}
	if cfg.PretrainEpochs == 0 {
		cfg.PretrainEpochs = DefaultPretrainEpochs
	}
	if cfg.AdversaryEpochs == 0 {
		cfg.AdversaryEpochs = DefaultAdversaryEpochs
	}
	if cfg.AdversaryTolerance == 0 {
		cfg.AdversaryTolerance = DefaultAdversaryTolerance
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PredictorLR == 0 {
		cfg.PredictorLR = DefaultPredictorLR
	}
	if cfg.AdversaryLR == 0 {
		cfg.AdversaryLR = DefaultAdversaryLR
	}
	if cfg.AdversaryWeight == 0 {
		cfg.AdversaryWeight = DefaultAdversaryWeight
	}
	if cfg.AdversaryWeightDecay == 0 {
		cfg.AdversaryWeightDecay = DefaultAdversaryWeightDecay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Validate checks that every field is in range. It is applied after
// defaults, so only explicitly bad values fail.
func (cfg Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
	}{
		{cfg.Features > 0, "features", cfg.Features},
		{cfg.HiddenUnits > 0, "hidden_units", cfg.HiddenUnits},
		{cfg.Variant.IsValid(), "variant", cfg.Variant},
		{cfg.Epochs > 0, "epochs", cfg.Epochs},
		{cfg.PretrainEpochs > 0, "pretrain_epochs", cfg.PretrainEpochs},
		{cfg.AdversaryEpochs > 0, "adversary_epochs", cfg.AdversaryEpochs},
		{cfg.AdversaryTolerance > 0, "adversary_tolerance", cfg.AdversaryTolerance},
		{cfg.BatchSize > 0, "batch_size", cfg.BatchSize},
		{cfg.PredictorLR > 0, "predictor_lr", cfg.PredictorLR},
		{cfg.AdversaryLR > 0, "adversary_lr", cfg.AdversaryLR},
		{cfg.AdversaryWeight > 0, "adversary_weight", cfg.AdversaryWeight},
		{cfg.AdversaryWeightDecay > 0, "adversary_weight_decay", cfg.AdversaryWeightDecay},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s = %v", ErrInvalidConfig, c.name, c.val)
		}
	}
	return nil
}
