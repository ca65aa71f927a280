package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			m, ok := b.(migrator)
			if !ok {
				logger.Info("Backend has no migrations", "backend", cfg.Backend.Type)
				return nil
			}

			if err := m.Migrate(); err != nil {
				return err
			}

			logger.Info("Migrations applied", "backend", cfg.Backend.Type)

			return nil
		},
	}
}
