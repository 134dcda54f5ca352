package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/BDNK1/rotor/cli/internal/config"
	"github.com/BDNK1/rotor/runtime"
	"github.com/BDNK1/rotor/runtime/engine/yaml"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	providersDir string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "rotor",
	Short: "rotor - password rotation for web accounts",
	Long: `rotor changes account passwords by driving the provider's web interface.

Providers are YAML definitions describing the flows that log in, verify the
old password and submit the new one.`,
	SilenceUsage: true,
}

// Execute runs the root command. Cancelling ctx stops a rotation between steps.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to rotor.yaml")
	rootCmd.PersistentFlags().StringVarP(&providersDir, "providers", "p", "", "Directory of provider definitions (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request and step")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(checkCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup loads the config and every provider definition it points at.
func setup() (*config.Config, *runtime.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if providersDir != "" {
		cfg.ProvidersDir = providersDir
	}

	registry := runtime.NewRegistry()
	builder := runtime.NewFlowBuilder(runtime.NewComponentRegistry(), cfg.Run)
	if _, err := yaml.NewDefinitionLoader(builder).LoadDir(cfg.ProvidersDir, registry); err != nil {
		return nil, nil, err
	}
	return cfg, registry, nil
}
