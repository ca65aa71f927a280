package main

import (
	"fmt"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/memory"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/mysql"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/postgres"
	redisbackend "github.com/Faizanmal/Real-Time-Pulse-sub010/backend/redis"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/sqlite"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/config"
	"github.com/redis/go-redis/v9"
)

// migrator is implemented by the SQL backends.
type migrator interface {
	Migrate() error
}

// openBackend creates the configured store. The SQL constructors panic on
// connection errors, those are turned into errors here.
func openBackend(cfg *config.Config, applyMigrations bool, opts ...backend.BackendOption) (b backend.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opening %s backend: %v", cfg.Backend.Type, r)
		}
	}()

	opts = append(opts, backend.WithExecutionListLimit(cfg.Backend.ExecutionListLimit))

	switch cfg.Backend.Type {
	case "memory":
		return memory.NewMemoryBackend(opts...), nil

	case "sqlite":
		return sqlite.NewSqliteBackend(
			cfg.Backend.SqlitePath,
			sqlite.WithApplyMigrations(applyMigrations),
			sqlite.WithBackendOptions(opts...),
		), nil

	case "postgres":
		return postgres.NewPostgresBackendWithDSN(
			cfg.Backend.DSN,
			postgres.WithApplyMigrations(applyMigrations),
			postgres.WithBackendOptions(opts...),
		), nil

	case "mysql":
		m := cfg.Backend.MySQL
		return mysql.NewMysqlBackend(
			m.Host, m.Port, m.User, m.Password, m.Database,
			mysql.WithApplyMigrations(applyMigrations),
			mysql.WithBackendOptions(opts...),
		), nil

	case "redis":
		r := cfg.Backend.Redis
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{r.Addr},
			Password: r.Password,
			DB:       r.DB,
		})

		rb, err := redisbackend.NewRedisBackend(
			client,
			redisbackend.WithKeyPrefix(r.KeyPrefix),
			redisbackend.WithBackendOptions(opts...),
		)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("opening redis backend: %w", err)
		}

		return rb, nil
	}

	return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
}
