// Package datasets provides datasets for training and evaluating debiased
// classifiers.
package datasets

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sky-flux/debias"
)

// SyntheticConfig configures Synthetic. Zero values produce defaults.
type SyntheticConfig struct {
	Samples    int     `json:"samples" yaml:"samples" mapstructure:"samples"`             // zero → 1000
	Features   int     `json:"features" yaml:"features" mapstructure:"features"`          // zero → 4; at least 2
	Disparity  float64 `json:"disparity" yaml:"disparity" mapstructure:"disparity"`       // zero → 0.3; otherwise in (0, 1)
	LabelNoise float64 `json:"label_noise" yaml:"label_noise" mapstructure:"label_noise"` // zero → 1.0
	ProxyNoise float64 `json:"proxy_noise" yaml:"proxy_noise" mapstructure:"proxy_noise"` // zero → 0.5
	Seed       int64   `json:"seed" yaml:"seed" mapstructure:"seed"`
}

func (cfg SyntheticConfig) withDefaults() SyntheticConfig {
	if cfg.Samples == 0 {
		cfg.Samples = 1000
	}
	if cfg.Features == 0 {
		cfg.Features = 4
	}
	if cfg.Disparity == 0 {
		cfg.Disparity = 0.3
	}
	if cfg.LabelNoise == 0 {
		cfg.LabelNoise = 1.0
	}
	if cfg.ProxyNoise == 0 {
		cfg.ProxyNoise = 0.5
	}
	return cfg
}

// Synthetic generates a dataset with two equally sized protected groups and
// an engineered outcome gap. The privileged group (protected = 1) has a
// favourable-label rate of 0.5 + Disparity/2 and the unprivileged group
// 0.5 − Disparity/2, so classes stay balanced overall and the labels' mean
// difference is −Disparity up to rounding. A zero Disparity means the
// default 0.3, so every generated dataset carries a gap.
//
// Feature 0 is a noisy copy of the label, feature 1 a noisy copy of the
// protected attribute, and the rest are pure noise. Column j is shifted by
// 3j and stretched by j+1 so the columns live on different scales.
func Synthetic(cfg SyntheticConfig) (*debias.Dataset, error) {
	cfg = cfg.withDefaults()
	switch {
	case cfg.Samples < 4:
		return nil, fmt.Errorf("%w: samples = %d, need at least 4", debias.ErrInvalidConfig, cfg.Samples)
	case cfg.Features < 2:
		return nil, fmt.Errorf("%w: features = %d, need at least 2", debias.ErrInvalidConfig, cfg.Features)
	case cfg.Disparity <= 0 || cfg.Disparity >= 1:
		return nil, fmt.Errorf("%w: disparity = %v out of (0, 1)", debias.ErrInvalidConfig, cfg.Disparity)
	case cfg.LabelNoise < 0 || cfg.ProxyNoise < 0:
		return nil, fmt.Errorf("%w: negative noise", debias.ErrInvalidConfig)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	half := cfg.Samples / 2
	protected := make([]float64, cfg.Samples)
	labels := make([]float64, cfg.Samples)

	// Group 1 occupies the first half before shuffling.
	for i := 0; i < half; i++ {
		protected[i] = 1
	}
	fill := func(lo, hi int, rate float64) {
		pos := int(math.Round(rate * float64(hi-lo)))
		for i := lo; i < lo+pos; i++ {
			labels[i] = 1
		}
	}
	fill(0, half, 0.5+cfg.Disparity/2)
	fill(half, cfg.Samples, 0.5-cfg.Disparity/2)

	rng.Shuffle(cfg.Samples, func(i, j int) {
		protected[i], protected[j] = protected[j], protected[i]
		labels[i], labels[j] = labels[j], labels[i]
	})

	samples := make([]debias.Sample, cfg.Samples)
	x := make([]float64, cfg.Features)
	for i := range samples {
		x[0] = (2*labels[i] - 1) + rng.NormFloat64()*cfg.LabelNoise
		x[1] = (2*protected[i] - 1) + rng.NormFloat64()*cfg.ProxyNoise
		for j := 2; j < cfg.Features; j++ {
			x[j] = rng.NormFloat64()
		}
		for j := range x {
			x[j] = x[j]*float64(j+1) + 3*float64(j)
		}
		s, err := debias.NewSample(x, labels[i], protected[i])
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return debias.NewDataset(samples)
}
