package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "pulse",
		Short:        "Workflow automation engine",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a config file (default ./config.yaml)")

	cmd.AddCommand(
		newServeCommand(flags),
		newMigrateCommand(flags),
		newSeedCommand(flags),
	)

	return cmd
}

func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return cfg, logger, nil
}
