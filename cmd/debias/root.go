package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sky-flux/debias"
	"github.com/sky-flux/debias/internal/experiment"
	"github.com/sky-flux/debias/internal/logger"
)

// options is everything the command reads from flags, env and config file.
type options struct {
	experiment.Settings `mapstructure:",squash"`

	Log    logger.Config `mapstructure:"log"`
	Format string        `mapstructure:"format"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "debias",
		Short:        "Adversarial debiasing experiments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./debias.yaml)")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return initConfig(v, cfgFile)
	}

	root.AddCommand(newRunCmd(v))
	return root
}

// initConfig wires defaults, DEBIAS_* environment variables and the optional
// config file into v.
func initConfig(v *viper.Viper, cfgFile string) error {
	setDefaults(v)

	v.SetEnvPrefix("DEBIAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("debias")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("split", experiment.DefaultSplit)

	v.SetDefault("data.samples", 1000)
	v.SetDefault("data.features", 4)
	v.SetDefault("data.disparity", 0.3)
	v.SetDefault("data.label_noise", 1.0)
	v.SetDefault("data.proxy_noise", 0.5)
	v.SetDefault("data.seed", 42)

	v.SetDefault("trainer.features", 0)   // set from the generated data
	v.SetDefault("trainer.debias", false) // set per model by the experiment
	v.SetDefault("trainer.seed", 42)
	v.SetDefault("trainer.variant", debias.DemographicParity.String())
	v.SetDefault("trainer.hidden_units", debias.DefaultHiddenUnits)
	v.SetDefault("trainer.epochs", debias.DefaultEpochs)
	v.SetDefault("trainer.pretrain_epochs", debias.DefaultPretrainEpochs)
	v.SetDefault("trainer.adversary_epochs", debias.DefaultAdversaryEpochs)
	v.SetDefault("trainer.adversary_tolerance", debias.DefaultAdversaryTolerance)
	v.SetDefault("trainer.batch_size", debias.DefaultBatchSize)
	v.SetDefault("trainer.predictor_lr", debias.DefaultPredictorLR)
	v.SetDefault("trainer.adversary_lr", debias.DefaultAdversaryLR)
	v.SetDefault("trainer.adversary_weight", debias.DefaultAdversaryWeight)
	v.SetDefault("trainer.adversary_weight_decay", debias.DefaultAdversaryWeightDecay)
	v.SetDefault("trainer.projection", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("format", "text")
}

// loadOptions decodes v into options. Variant strings go through
// Variant.UnmarshalText.
func loadOptions(v *viper.Viper) (options, error) {
	var o options
	hook := viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
	if err := v.Unmarshal(&o, hook); err != nil {
		return options{}, fmt.Errorf("decode config: %w", err)
	}
	return o, nil
}
