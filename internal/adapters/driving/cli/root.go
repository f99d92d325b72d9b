// Package cli implements the forml command line interface on top of
// the lifecycle service.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/formlio/forml/internal/adapters/driven/config"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/core/ports/driving"
	"github.com/formlio/forml/internal/core/services"
	"github.com/formlio/forml/internal/flow/actors"
	"github.com/formlio/forml/internal/logger"
)

// Injected services. Built from the configuration on first use unless
// a test wired its own.
var (
	lifecycleService driving.Lifecycle

	// activeRegistry is shut down after the command completes.
	activeRegistry driven.Registry
)

// Persistent flag values.
var (
	configPath    string
	registryAlias string
	runnerAlias   string
	engineAlias   string
	sinkAlias     string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "forml",
	Short: "Lifecycle management for machine learning projects",
	Long: `Forml manages the full lifecycle of a machine learning project:
scaffolding, packaging, training, hyperparameter tuning and scoring,
with every trained generation tracked in a model registry.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "C", "", "explicit configuration file")
	flags.StringVarP(&registryAlias, "registry", "P", "", "registry provider alias")
	flags.StringVarP(&runnerAlias, "runner", "R", "", "runner provider alias")
	flags.StringVarP(&engineAlias, "engine", "E", "", "feed provider alias")
	flags.StringVar(&sinkAlias, "sink", "", "sink provider alias")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// Execute runs the CLI, releasing provider resources once the command
// completes, whether it succeeded or not.
func Execute() error {
	err := rootCmd.Execute()
	if shutdownErr := teardown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// SetLifecycle injects the lifecycle service, bypassing the
// configuration driven construction.
func SetLifecycle(s driving.Lifecycle) {
	lifecycleService = s
}

// setup assembles the lifecycle service from the merged configuration
// and the provider flags.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if lifecycleService != nil || cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	bank := defaultBank()

	alias := pick(registryAlias, cfg.Registry.Default)
	registry, err := bank.Registry(alias, cfg.Registry.Options(alias))
	if err != nil {
		return err
	}
	activeRegistry = registry

	alias = pick(runnerAlias, cfg.Runner.Default)
	runner, err := bank.Runner(alias, cfg.Runner.Options(alias))
	if err != nil {
		return err
	}
	alias = pick(engineAlias, cfg.Feed.Default)
	feed, err := bank.Feed(alias, cfg.Feed.Options(alias))
	if err != nil {
		return err
	}
	alias = pick(sinkAlias, cfg.Sink.Default)
	sink, err := bank.Sink(alias, cfg.Sink.Options(alias))
	if err != nil {
		return err
	}

	lifecycleService = services.NewLifecycle(
		services.NewDirectory(registry), runner, feed, sink, actors.New, "")
	return nil
}

// teardown releases the registry resources after the command.
func teardown() error {
	if activeRegistry == nil {
		return nil
	}
	err := activeRegistry.Shutdown()
	activeRegistry = nil
	return err
}

// pick prefers the flag value over the configured default.
func pick(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}
