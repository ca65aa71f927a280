package engine

import (
	"log/slog"
	"time"
)

type Options struct {
	// Logger overrides the backend's logger.
	Logger *slog.Logger

	// MaxParallelRuns limits the number of executions running at the same
	// time. Zero means no limit.
	MaxParallelRuns int

	// TemplateCacheTTL is how long template listings are cached. Zero
	// disables the cache.
	TemplateCacheTTL time.Duration

	// WaitTimeout is used by WaitForExecution when no timeout is given.
	WaitTimeout time.Duration
}

var DefaultOptions = Options{
	TemplateCacheTTL: 30 * time.Second,
	WaitTimeout:      20 * time.Second,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMaxParallelRuns(n int) Option {
	return func(o *Options) {
		o.MaxParallelRuns = n
	}
}

func WithTemplateCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TemplateCacheTTL = ttl
	}
}

func WithWaitTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.WaitTimeout = timeout
	}
}
