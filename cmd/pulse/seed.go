package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/spf13/cobra"
)

//go:embed catalog.yaml
var defaultCatalog []byte

func newSeedCommand(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the workflow template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			b, err := openBackend(cfg, true, backend.WithLogger(logger))
			if err != nil {
				return err
			}
			defer b.Close()

			return seedCatalog(cmd.Context(), b, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML template catalog (default builtin catalog)")

	return cmd
}

// seedCatalog stores the templates of the catalog at path, or the builtin
// catalog if path is empty. Existing templates are left untouched.
func seedCatalog(ctx context.Context, b backend.Backend, path string) error {
	var r io.Reader = bytes.NewReader(defaultCatalog)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer f.Close()

		r = f
	}

	templates, err := backend.LoadCatalog(r)
	if err != nil {
		return err
	}

	created, err := backend.SeedTemplates(ctx, b, templates)
	if err != nil {
		return err
	}

	b.Options().Logger.InfoContext(ctx, "Seeded template catalog", "created", created, "total", len(templates))

	return nil
}
