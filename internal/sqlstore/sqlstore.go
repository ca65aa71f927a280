// Package sqlstore implements backend.Backend on database/sql. The sqlite,
// postgres and mysql backends share it and differ only in their dialect and
// migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	"go.opentelemetry.io/otel/trace"
)

type Dialect struct {
	// Name is used as the backend metrics tag.
	Name string

	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool

	// IntDiv is the integer division operator.
	IntDiv string
}

var (
	SQLite   = Dialect{Name: "sqlite", IntDiv: "/"}
	Postgres = Dialect{Name: "postgres", Numbered: true, IntDiv: "/"}
	MySQL    = Dialect{Name: "mysql", IntDiv: "DIV"}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

type Store struct {
	db             *sql.DB
	dialect        Dialect
	options        *backend.Options
	ownsConnection bool
}

func New(db *sql.DB, dialect Dialect, options *backend.Options, ownsConnection bool) *Store {
	return &Store{
		db:             db,
		dialect:        dialect,
		options:        options,
		ownsConnection: ownsConnection,
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Tracer() trace.Tracer {
	return s.options.TracerProvider.Tracer(backend.TracerName)
}

func (s *Store) Metrics() metrics.Client {
	return s.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: s.dialect.Name})
}

func (s *Store) Options() *backend.Options {
	return s.options
}

func (s *Store) Close() error {
	if !s.ownsConnection {
		return nil
	}

	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
