package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_SqliteBackend(t *testing.T) {
	test.BackendTest(t, func() backend.Backend {
		return NewInMemoryBackend()
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_SqliteBackend_File(t *testing.T) {
	dir := t.TempDir()

	test.BackendTest(t, func() backend.Backend {
		return NewSqliteBackend(filepath.Join(dir, uuid.NewString()+".db"))
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_SqliteBackend_PragmaSettings(t *testing.T) {
	t.Run("In-memory database has memory journal mode", func(t *testing.T) {
		b := NewInMemoryBackend()
		defer b.Close()

		var journalMode string
		err := b.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "memory", journalMode)
	})

	t.Run("File backend has WAL mode", func(t *testing.T) {
		b := NewSqliteBackend(filepath.Join(t.TempDir(), "pragma.db"))
		defer b.Close()

		var journalMode string
		err := b.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "wal", journalMode)
	})
}

func Test_SqliteBackend_MigrateIsIdempotent(t *testing.T) {
	b := NewInMemoryBackend()
	defer b.Close()

	require.NoError(t, b.Migrate())
}
