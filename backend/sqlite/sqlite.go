package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/sqlstore"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// NewInMemoryBackend returns a backend on a private in-memory database.
func NewInMemoryBackend(opts ...option) *sqliteBackend {
	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=journal_mode(memory)", uuid.NewString())
	b := newSqliteBackend(dsn, opts...)

	return b
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", path)
	return newSqliteBackend(dsn, opts...)
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	o := backend.ApplyOptions()
	options := &options{
		Options:         &o,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	// SQLite allows a single writer. Serializing through one connection also
	// keeps an in-memory database alive for the lifetime of the backend.
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{
		Store:   sqlstore.New(db, sqlstore.SQLite, options.Options, true),
		db:      db,
		options: options,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type sqliteBackend struct {
	*sqlstore.Store

	db      *sql.DB
	options *options
}

var _ backend.Backend = (*sqliteBackend)(nil)

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := sqlite.WithInstance(sb.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}
