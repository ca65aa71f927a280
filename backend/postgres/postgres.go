package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/sqlstore"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

func NewPostgresBackend(host string, port int, user, password, database string, opts ...option) *postgresBackend {
	options := newOptions(true, opts...)

	sslMode := options.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", host, port, user, password, database, sslMode)

	return NewPostgresBackendWithDSN(dsn, opts...)
}

// NewPostgresBackendWithDSN creates a backend from a connection string in any
// form pgx accepts.
func NewPostgresBackendWithDSN(dsn string, opts ...option) *postgresBackend {
	options := newOptions(true, opts...)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic(err)
	}

	if options.PostgresOptions != nil {
		options.PostgresOptions(db)
	}

	b := &postgresBackend{
		Store:   sqlstore.New(db, sqlstore.Postgres, options.Options, true),
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

// NewPostgresBackendWithDB creates a new Postgres backend using an existing database connection.
// When using this constructor, the backend will not close the database connection when Close() is called.
func NewPostgresBackendWithDB(db *sql.DB, opts ...option) *postgresBackend {
	options := newOptions(false, opts...)

	b := &postgresBackend{
		Store:   sqlstore.New(db, sqlstore.Postgres, options.Options, false),
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

type postgresBackend struct {
	*sqlstore.Store

	db      *sql.DB
	options *options
}

var _ backend.Backend = (*postgresBackend)(nil)

// Migrate applies any pending database migrations.
func (pb *postgresBackend) Migrate() error {
	dbi, err := postgres.WithInstance(pb.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "postgres", dbi)
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
