package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/log"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/tracing"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrExecutionTimeout   = errors.New("execution did not finish in specified timeout")
	ErrInvalidTriggerData = errors.New("invalid trigger data")
)

// ExecuteWorkflow starts a run of an active workflow and returns the RUNNING
// execution right away. The outcome is only observable by reading the
// execution later.
//
// triggerData may be a json.RawMessage, which is stored as is, or any value
// that encodes to JSON. A nil payload is stored as an empty object.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, triggerData any) (*workflow.Execution, error) {
	data, err := encodeTriggerData(triggerData)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, workflowID, data, "")
}

func encodeTriggerData(triggerData any) (json.RawMessage, error) {
	switch v := triggerData.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage(`{}`), nil
		}

		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidTriggerData)
		}

		return append(json.RawMessage(nil), v...), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTriggerData, err)
		}

		return b, nil
	}
}

func (e *Engine) execute(ctx context.Context, workflowID string, triggerData json.RawMessage, retryOf string) (*workflow.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ExecuteWorkflow", trace.WithAttributes(
		attribute.String(tracing.WorkflowID, workflowID),
	))
	defer span.End()

	wf, err := e.backend.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting workflow: %w", err))
	}

	if !wf.IsActive {
		return nil, ErrWorkflowInactive
	}

	exec := &workflow.Execution{
		ID:          uuid.NewString(),
		WorkflowID:  wf.ID,
		TriggerData: triggerData,
		Status:      workflow.ExecutionStatusRunning,
		Steps:       []workflow.Step{},
		StartedAt:   e.clock.Now().UTC(),
		RetryOf:     retryOf,
	}

	if err := e.backend.CreateExecution(ctx, exec); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating execution: %w", err))
	}

	span.SetAttributes(attribute.String(tracing.ExecutionID, exec.ID))

	e.logger.DebugContext(ctx, "started execution",
		log.WorkflowIDKey, wf.ID,
		log.ExecutionIDKey, exec.ID,
		log.RetryOfKey, retryOf,
	)
	e.metrics.Counter(metrickeys.ExecutionStarted, metrics.Tags{}, 1)

	e.runner.Start(ctx, wf, exec)

	return exec.Clone(), nil
}

// GetExecutions lists the executions of a workflow, newest first. A limit of
// zero uses the backend's default.
func (e *Engine) GetExecutions(ctx context.Context, workflowID string, limit int) ([]*workflow.Execution, error) {
	if _, err := e.backend.GetWorkflow(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("getting workflow: %w", err)
	}

	executions, err := e.backend.ListExecutions(ctx, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}

	return executions, nil
}

func (e *Engine) GetExecution(ctx context.Context, id string) (*workflow.Execution, error) {
	exec, err := e.backend.GetExecution(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting execution: %w", err)
	}

	return exec, nil
}

// RetryExecution starts a new execution of a failed execution's workflow with
// a copy of its trigger data. The failed execution is left untouched.
func (e *Engine) RetryExecution(ctx context.Context, id string) (*workflow.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.RetryExecution", trace.WithAttributes(
		attribute.String(tracing.ExecutionID, id),
	))
	defer span.End()

	failed, err := e.backend.GetExecution(ctx, id)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting execution: %w", err))
	}

	if failed.Status != workflow.ExecutionStatusFailed {
		return nil, ErrExecutionNotFailed
	}

	retry, err := e.execute(ctx, failed.WorkflowID, append(json.RawMessage(nil), failed.TriggerData...), failed.ID)
	if err != nil {
		return nil, err
	}

	e.metrics.Counter(metrickeys.ExecutionRetried, metrics.Tags{}, 1)

	return retry, nil
}

// WaitForExecution polls an execution until it has settled or the timeout
// expires. A zero timeout uses the configured default.
func (e *Engine) WaitForExecution(ctx context.Context, id string, timeout time.Duration) (*workflow.Execution, error) {
	if timeout == 0 {
		timeout = e.options.WaitTimeout
	}

	ctx, span := e.tracer.Start(ctx, "Engine.WaitForExecution", trace.WithAttributes(
		attribute.String(tracing.ExecutionID, id),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               e.clock,
	}
	b.Reset()

	ticker := backoff.NewTicker(backoff.WithContext(&b, ctx))
	defer ticker.Stop()

	for range ticker.C {
		exec, err := e.backend.GetExecution(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			return nil, fmt.Errorf("getting execution: %w", err)
		}

		if exec.Status.Terminal() {
			return exec, nil
		}
	}

	return nil, ErrExecutionTimeout
}
