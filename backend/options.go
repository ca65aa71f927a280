package backend

import (
	"log/slog"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	mi "github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrics"
	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Clock is used for creation and update timestamps.
	Clock clock.Clock

	// ExecutionListLimit caps ListExecutions when the caller passes no limit.
	// Zero means no cap.
	ExecutionListLimit int
}

var DefaultOptions Options = Options{
	Logger:         slog.Default(),
	Metrics:        mi.NewNoopMetricsClient(),
	TracerProvider: noop.NewTracerProvider(),
	Clock:          clock.New(),
}

type BackendOption func(*Options)

func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) BackendOption {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) BackendOption {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithClock(c clock.Clock) BackendOption {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithExecutionListLimit(limit int) BackendOption {
	return func(o *Options) {
		o.ExecutionListLimit = limit
	}
}

func ApplyOptions(opts ...BackendOption) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return options
}

// EffectiveLimit resolves the limit passed to ListExecutions.
func (o *Options) EffectiveLimit(limit int) int {
	if limit > 0 {
		return limit
	}

	return o.ExecutionListLimit
}
