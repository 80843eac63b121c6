package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sky-flux/debias/internal/experiment"
	"github.com/sky-flux/debias/internal/logger"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train plain and debiased models and compare their fairness",
		Long: `Generates a synthetic dataset with an engineered outcome gap between two
protected groups, splits and scales it, trains one model without and one
with the adversary, and reports accuracy and fairness metrics on the
held-out split.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExperiment(cmd, v)
		},
	}

	f := cmd.Flags()
	f.Int64("seed", 42, "seed for weight init and batch shuffling")
	f.Int64("data-seed", 42, "seed for data generation and the split")
	f.Int("samples", 1000, "number of synthetic samples")
	f.Float64("disparity", 0.3, "engineered outcome-rate gap between groups")
	f.Float64("split", experiment.DefaultSplit, "fraction of samples used for training")
	f.Int("epochs", 50, "training epochs (adversarial phase when debiasing)")
	f.String("variant", "demographic_parity", "adversary variant: demographic_parity or equalized_odds")
	f.Float64("adversary-weight", 1.0, "initial adversary loss weight")
	f.StringP("format", "o", "text", "output format: text, yaml or json")
	f.String("log-level", "info", "log level")
	f.String("log-format", "console", "log format: console or json")

	bindings := map[string]string{
		"trainer.seed":             "seed",
		"data.seed":                "data-seed",
		"data.samples":             "samples",
		"data.disparity":           "disparity",
		"split":                    "split",
		"trainer.epochs":           "epochs",
		"trainer.variant":          "variant",
		"trainer.adversary_weight": "adversary-weight",
		"format":                   "format",
		"log.level":                "log-level",
		"log.format":               "log-format",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %q to %q: %v", flag, key, err))
		}
	}
	return cmd
}

func runExperiment(cmd *cobra.Command, v *viper.Viper) error {
	opts, err := loadOptions(v)
	if err != nil {
		return err
	}
	render, ok := renderers[opts.Format]
	if !ok {
		return fmt.Errorf("unknown output format %q", opts.Format)
	}

	log := logger.New(opts.Log, cmd.ErrOrStderr())
	defer func() { _ = log.Sync() }()

	res, err := experiment.Run(cmd.Context(), opts.Settings, log)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), res)
}
