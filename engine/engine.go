// Package engine exposes the workflow operations: definition management,
// execution and template instantiation.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/runner"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/benbjohnson/clock"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidState is returned for operations the current state of a
	// workflow or execution does not allow.
	ErrInvalidState = errors.New("invalid state")

	ErrWorkflowInactive   = fmt.Errorf("workflow is not active: %w", ErrInvalidState)
	ErrExecutionNotFailed = fmt.Errorf("only failed executions can be retried: %w", ErrInvalidState)

	// ErrInvalidWorkflow is returned when a definition fails validation.
	ErrInvalidWorkflow = errors.New("invalid workflow")
)

type Engine struct {
	backend  backend.Backend
	registry *action.Registry
	runner   *runner.Runner

	logger  *slog.Logger
	clock   clock.Clock
	tracer  trace.Tracer
	metrics metrics.Client

	templates *ttlcache.Cache[workflow.TemplateFilter, []*workflow.Template]

	options Options
}

func New(b backend.Backend, registry *action.Registry, opts ...Option) *Engine {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = b.Options().Logger
	}

	e := &Engine{
		backend:  b,
		registry: registry,
		runner:   runner.New(b, registry, &runner.Options{MaxParallelRuns: options.MaxParallelRuns}),
		logger:   logger,
		clock:    b.Options().Clock,
		tracer:   b.Tracer(),
		metrics:  b.Metrics(),
		options:  options,
	}

	// Listings expire TTL after they were loaded, reads do not extend them, so
	// templates seeded by other processes show up.
	if options.TemplateCacheTTL > 0 {
		e.templates = ttlcache.New(
			ttlcache.WithTTL[workflow.TemplateFilter, []*workflow.Template](options.TemplateCacheTTL),
			ttlcache.WithDisableTouchOnHit[workflow.TemplateFilter, []*workflow.Template](),
		)
	}

	return e
}

// WaitForCompletion blocks until every execution started by the engine has
// settled.
func (e *Engine) WaitForCompletion() {
	e.runner.WaitForCompletion()
}

func (e *Engine) validate(wf *workflow.Workflow) error {
	if strings.TrimSpace(wf.WorkspaceID) == "" {
		return fmt.Errorf("%w: workspace id is required", ErrInvalidWorkflow)
	}

	if strings.TrimSpace(wf.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}

	return e.validateActions(wf.Actions)
}

func (e *Engine) validateActions(actions []action.Descriptor) error {
	for i, a := range actions {
		if !e.registry.Has(a.Type) {
			return fmt.Errorf("%w: action %d: unknown action type %q", ErrInvalidWorkflow, i, a.Type)
		}
	}

	return nil
}
