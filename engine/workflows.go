package engine

import (
	"context"
	"fmt"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/log"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/tracing"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateWorkflow stores a new definition. The id is generated when empty,
// the version starts at 1 and stats start at zero.
func (e *Engine) CreateWorkflow(ctx context.Context, def *workflow.Workflow) (*workflow.Workflow, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreateWorkflow", trace.WithAttributes(
		attribute.String(tracing.WorkspaceID, def.WorkspaceID),
	))
	defer span.End()

	if err := e.validate(def); err != nil {
		return nil, err
	}

	wf := def.Clone()
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}

	now := e.clock.Now().UTC()
	wf.Version = 1
	wf.Stats = workflow.Stats{}
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := e.backend.CreateWorkflow(ctx, wf); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating workflow: %w", err))
	}

	e.logger.DebugContext(ctx, "created workflow",
		log.WorkflowIDKey, wf.ID,
		log.WorkspaceIDKey, wf.WorkspaceID,
		log.WorkflowNameKey, wf.Name,
	)
	e.metrics.Counter(metrickeys.WorkflowCreated, metrics.Tags{}, 1)

	return wf, nil
}

func (e *Engine) GetWorkflows(ctx context.Context, workspaceID string) ([]*workflow.Workflow, error) {
	wfs, err := e.backend.ListWorkflows(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}

	return wfs, nil
}

func (e *Engine) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	wf, err := e.backend.GetWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting workflow: %w", err)
	}

	return wf, nil
}

// UpdateWorkflow applies patch and bumps the version by one, even if the patch
// is empty.
func (e *Engine) UpdateWorkflow(ctx context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.UpdateWorkflow", trace.WithAttributes(
		attribute.String(tracing.WorkflowID, id),
	))
	defer span.End()

	if patch.Name != nil && *patch.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}

	if patch.Actions != nil {
		if err := e.validateActions(*patch.Actions); err != nil {
			return nil, err
		}
	}

	wf, err := e.backend.UpdateWorkflow(ctx, id, patch)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("updating workflow: %w", err))
	}

	e.logger.DebugContext(ctx, "updated workflow", log.WorkflowIDKey, id, log.VersionKey, wf.Version)
	e.metrics.Counter(metrickeys.WorkflowUpdated, metrics.Tags{}, 1)

	return wf, nil
}

// ToggleWorkflow activates or deactivates a workflow without changing its
// version.
func (e *Engine) ToggleWorkflow(ctx context.Context, id string, isActive bool) (*workflow.Workflow, error) {
	wf, err := e.backend.ToggleWorkflow(ctx, id, isActive)
	if err != nil {
		return nil, fmt.Errorf("toggling workflow: %w", err)
	}

	return wf, nil
}

// DeleteWorkflow removes a workflow together with its executions.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	if err := e.backend.DeleteWorkflow(ctx, id); err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}

	e.logger.DebugContext(ctx, "deleted workflow", log.WorkflowIDKey, id)
	e.metrics.Counter(metrickeys.WorkflowDeleted, metrics.Tags{}, 1)

	return nil
}
