package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/config"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/stretchr/testify/require"
)

func Test_DefaultCatalog(t *testing.T) {
	templates, err := backend.LoadCatalog(bytes.NewReader(defaultCatalog))
	require.NoError(t, err)
	require.NotEmpty(t, templates)

	known := map[action.Type]bool{}
	for _, typ := range action.Types() {
		known[typ] = true
	}

	ids := map[string]bool{}
	for _, tmpl := range templates {
		require.NotEmpty(t, tmpl.ID)
		require.False(t, ids[tmpl.ID], "duplicate template id %q", tmpl.ID)
		ids[tmpl.ID] = true

		require.NotEmpty(t, tmpl.Body.Actions, tmpl.ID)
		for _, a := range tmpl.Body.Actions {
			require.True(t, known[a.Type], "template %q uses unknown action %q", tmpl.ID, a.Type)
		}
	}
}

func Test_SeedCatalog_Idempotent(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.Type = "memory"

	b, err := openBackend(cfg, true)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()

	require.NoError(t, seedCatalog(ctx, b, ""))
	require.NoError(t, seedCatalog(ctx, b, ""))

	templates, err := b.ListTemplates(ctx, workflow.TemplateFilter{})
	require.NoError(t, err)

	builtin, err := backend.LoadCatalog(bytes.NewReader(defaultCatalog))
	require.NoError(t, err)
	require.Len(t, templates, len(builtin))
}

func Test_SeedCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - id: custom
    name: Custom
    body:
      actions:
        - type: send_email
          config:
            to: ops@example.com
`), 0o600))

	cfg := &config.Config{}
	cfg.Backend.Type = "memory"

	b, err := openBackend(cfg, true)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, seedCatalog(ctx, b, path))

	tmpl, err := b.GetTemplate(ctx, "custom")
	require.NoError(t, err)
	require.Equal(t, "Custom", tmpl.Name)
}

func Test_OpenBackend_SQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.Type = "sqlite"
	cfg.Backend.SqlitePath = filepath.Join(t.TempDir(), "pulse.sqlite")

	b, err := openBackend(cfg, true)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	// A second open finds the schema in place
	b, err = openBackend(cfg, false)
	require.NoError(t, err)
	defer b.Close()

	m, ok := b.(migrator)
	require.True(t, ok)
	require.NoError(t, m.Migrate())

	_, err = b.ListTemplates(context.Background(), workflow.TemplateFilter{})
	require.NoError(t, err)
}

func Test_OpenBackend_Unknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.Type = "cassandra"

	_, err := openBackend(cfg, true)
	require.EqualError(t, err, `unknown backend type "cassandra"`)
}
