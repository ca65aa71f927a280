// Package backend defines the persistence contract of the workflow engine.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotFound = errors.New("not found")

	ErrWorkflowNotFound  = fmt.Errorf("workflow %w", ErrNotFound)
	ErrExecutionNotFound = fmt.Errorf("execution %w", ErrNotFound)
	ErrTemplateNotFound  = fmt.Errorf("template %w", ErrNotFound)

	// ErrExecutionSettled is returned when settling an execution that is no
	// longer running.
	ErrExecutionSettled = errors.New("execution already settled")

	ErrAlreadyExists = errors.New("already exists")
)

const TracerName = "pulse-workflows"

// StatsDelta is one settlement to fold into a workflow's statistics.
type StatsDelta struct {
	Success    bool
	Duration   time.Duration
	ExecutedAt time.Time
}

// Backend persists workflows, executions and templates. Every store runs the
// shared suite in backend/test.
type Backend interface {
	// GetWorkflow returns the workflow or ErrWorkflowNotFound
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)

	// ListWorkflows returns the workflows of a workspace, newest first
	ListWorkflows(ctx context.Context, workspaceID string) ([]*workflow.Workflow, error)

	// CreateWorkflow stores a new workflow. ID, timestamps and version must already be set.
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error

	// UpdateWorkflow applies the patch and increments the version by exactly one
	UpdateWorkflow(ctx context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error)

	// ToggleWorkflow sets the active flag without changing the version
	ToggleWorkflow(ctx context.Context, id string, isActive bool) (*workflow.Workflow, error)

	// DeleteWorkflow removes the workflow together with its executions
	DeleteWorkflow(ctx context.Context, id string) error

	// CreateExecution stores a new running execution
	CreateExecution(ctx context.Context, e *workflow.Execution) error

	// UpdateExecution settles a running execution. Settling an execution that
	// is not running returns ErrExecutionSettled.
	UpdateExecution(ctx context.Context, id string, s workflow.Settlement) (*workflow.Execution, error)

	// GetExecution returns the execution or ErrExecutionNotFound
	GetExecution(ctx context.Context, id string) (*workflow.Execution, error)

	// ListExecutions returns up to limit executions of a workflow, newest
	// first. A limit <= 0 returns all of them.
	ListExecutions(ctx context.Context, workflowID string, limit int) ([]*workflow.Execution, error)

	// IncrementWorkflowStats atomically folds one settlement into the
	// workflow's statistics.
	IncrementWorkflowStats(ctx context.Context, workflowID string, delta StatsDelta) error

	GetTemplate(ctx context.Context, id string) (*workflow.Template, error)

	ListTemplates(ctx context.Context, filter workflow.TemplateFilter) ([]*workflow.Template, error)

	CreateTemplate(ctx context.Context, t *workflow.Template) error

	// IncrementTemplateUsage atomically increases the template's usage count by one
	IncrementTemplateUsage(ctx context.Context, id string) error

	// Tracer returns the configured tracer for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}
