// Package runner executes workflow runs in the background and settles them.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/log"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	im "github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/tracing"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/go-errors/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEngineFault is the error recorded for runs that failed for reasons not
// attributable to a single action.
var ErrEngineFault = errors.New("internal engine error")

type Dispatcher interface {
	Dispatch(ctx context.Context, d action.Descriptor, triggerData json.RawMessage, workspaceID string) (json.RawMessage, error)
}

type Options struct {
	// MaxParallelRuns limits the number of runs executing at the same time.
	// Zero means no limit.
	MaxParallelRuns int

	// SettleRetries bounds how often a failed settlement write is retried.
	SettleRetries uint64

	// SettleRetryInterval is the initial wait between settlement retries.
	SettleRetryInterval time.Duration
}

var DefaultOptions = Options{
	SettleRetries:       5,
	SettleRetryInterval: 50 * time.Millisecond,
}

type Runner struct {
	backend    backend.Backend
	dispatcher Dispatcher

	logger  *slog.Logger
	clock   clock.Clock
	tracer  trace.Tracer
	metrics metrics.Client

	options Options

	sem chan struct{}
	wg  sync.WaitGroup
}

func New(b backend.Backend, d Dispatcher, options *Options) *Runner {
	if options == nil {
		options = &Options{}
	}

	o := *options
	if o.SettleRetries == 0 {
		o.SettleRetries = DefaultOptions.SettleRetries
	}

	if o.SettleRetryInterval == 0 {
		o.SettleRetryInterval = DefaultOptions.SettleRetryInterval
	}

	r := &Runner{
		backend:    b,
		dispatcher: d,
		logger:     b.Options().Logger,
		clock:      b.Options().Clock,
		tracer:     b.Tracer(),
		metrics:    b.Metrics(),
		options:    o,
	}

	if options.MaxParallelRuns > 0 {
		r.sem = make(chan struct{}, options.MaxParallelRuns)
	}

	return r
}

// Start runs e in the background. The run is not canceled with ctx, only
// its values are used.
func (r *Runner) Start(ctx context.Context, wf *workflow.Workflow, e *workflow.Execution) {
	runCtx := context.WithoutCancel(ctx)
	wf = wf.Clone()
	e = e.Clone()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.recoverRun(runCtx, wf, e)

		// If limited max runs, wait for a slot to open up
		if r.sem != nil {
			r.sem <- struct{}{}
			defer func() { <-r.sem }()
		}

		r.run(runCtx, wf, e)
	}()
}

// WaitForCompletion blocks until every started run has settled.
func (r *Runner) WaitForCompletion() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, wf *workflow.Workflow, e *workflow.Execution) {
	ctx, span := r.tracer.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String(tracing.WorkflowID, wf.ID),
		attribute.String(tracing.WorkspaceID, wf.WorkspaceID),
		attribute.String(tracing.ExecutionID, e.ID),
	))
	defer span.End()

	logger := r.logger.With(
		log.WorkflowIDKey, wf.ID,
		log.ExecutionIDKey, e.ID,
	)

	s := r.execute(ctx, logger, wf, e)
	s.CompletedAt = r.clock.Now()
	s.Duration = s.CompletedAt.Sub(e.StartedAt)

	span.SetAttributes(attribute.String(tracing.ExecutionStatus, string(s.Status)))
	if s.Status == workflow.ExecutionStatusFailed {
		tracing.WithSpanError(span, errors.New(s.Error))
	}

	r.settle(ctx, logger, wf, e, s)
}

// execute runs the body of an execution. Panics are turned into a failed
// settlement carrying ErrEngineFault.
func (r *Runner) execute(ctx context.Context, logger *slog.Logger, wf *workflow.Workflow, e *workflow.Execution) (s workflow.Settlement) {
	steps := []workflow.Step{}

	defer func() {
		if p := recover(); p != nil {
			err := goerrors.Wrap(p, 2)
			logger.ErrorContext(ctx, "execution panicked", "error", err, log.StackKey, string(err.Stack()))

			s = workflow.Settlement{
				Status: workflow.ExecutionStatusFailed,
				Steps:  steps,
				Error:  ErrEngineFault.Error(),
			}
		}
	}()

	var data any
	if len(e.TriggerData) > 0 {
		if err := json.Unmarshal(e.TriggerData, &data); err != nil {
			logger.ErrorContext(ctx, "could not decode trigger data", "error", err)

			return workflow.Settlement{
				Status: workflow.ExecutionStatusFailed,
				Steps:  steps,
				Error:  ErrEngineFault.Error(),
			}
		}
	}

	if wf.Conditions != nil && !wf.Conditions.Evaluate(data) {
		steps = append(steps, workflow.Step{
			Kind:   workflow.StepKindCondition,
			Status: workflow.StepStatusNotMet,
		})

		return workflow.Settlement{Status: workflow.ExecutionStatusCompleted, Steps: steps}
	}

	for i, d := range wf.Actions {
		step, err := r.dispatch(ctx, i, wf, e, d)
		steps = append(steps, step)

		if err != nil {
			logger.DebugContext(ctx, "action failed",
				log.ActionTypeKey, string(d.Type),
				log.ActionIndexKey, i,
				"error", err,
			)

			return workflow.Settlement{
				Status: workflow.ExecutionStatusFailed,
				Steps:  steps,
				Error:  err.Error(),
			}
		}
	}

	return workflow.Settlement{Status: workflow.ExecutionStatusCompleted, Steps: steps}
}

func (r *Runner) dispatch(ctx context.Context, i int, wf *workflow.Workflow, e *workflow.Execution, d action.Descriptor) (workflow.Step, error) {
	ctx, span := r.tracer.Start(ctx, "Runner.Dispatch", trace.WithAttributes(
		attribute.String(tracing.ActionType, string(d.Type)),
		attribute.Int(tracing.ActionIndex, i),
	))
	defer span.End()

	tags := metrics.Tags{metrickeys.ActionType: string(d.Type)}
	timer := im.NewTimer(r.metrics, r.clock, metrickeys.ActionDuration, tags)
	defer timer.Stop()

	start := r.clock.Now()
	result, err := r.dispatcher.Dispatch(ctx, d, e.TriggerData, wf.WorkspaceID)
	duration := r.clock.Since(start)

	step := workflow.Step{
		Kind:     string(d.Type),
		Duration: duration,
	}

	if err != nil {
		step.Status = workflow.StepStatusFailed
		step.Error = err.Error()
		r.metrics.Counter(metrickeys.ActionDispatched, metrics.Tags{
			metrickeys.ActionType: string(d.Type),
			metrickeys.Status:     string(workflow.StepStatusFailed),
		}, 1)

		return step, tracing.WithSpanError(span, err)
	}

	step.Status = workflow.StepStatusSuccess
	step.Result = result
	r.metrics.Counter(metrickeys.ActionDispatched, metrics.Tags{
		metrickeys.ActionType: string(d.Type),
		metrickeys.Status:     string(workflow.StepStatusSuccess),
	}, 1)

	return step, nil
}

// recoverRun is the last boundary of a run goroutine. A panic outside the
// execution body, for example in a store call, is logged and the execution
// is settled as an engine fault if it is still running.
func (r *Runner) recoverRun(ctx context.Context, wf *workflow.Workflow, e *workflow.Execution) {
	p := recover()
	if p == nil {
		return
	}

	err := goerrors.Wrap(p, 2)
	logger := r.logger.With(log.WorkflowIDKey, wf.ID, log.ExecutionIDKey, e.ID)
	logger.ErrorContext(ctx, "run panicked", "error", err, log.StackKey, string(err.Stack()))

	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "could not settle panicked run", "error", goerrors.Wrap(p, 2))
		}
	}()

	completedAt := r.clock.Now()
	r.settle(ctx, logger, wf, e, workflow.Settlement{
		Status:      workflow.ExecutionStatusFailed,
		Steps:       []workflow.Step{},
		Error:       ErrEngineFault.Error(),
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(e.StartedAt),
	})
}

// retry calls f until it succeeds, returns a permanent error or the retries
// are used up.
func (r *Runner) retry(ctx context.Context, logger *slog.Logger, op string, f func() error) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.options.SettleRetryInterval,
		MaxInterval:         time.Second * 5,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		Stop:                backoff.Stop,
		Clock:               r.clock,
	}
	b.Reset()

	return backoff.RetryNotify(
		f,
		backoff.WithContext(backoff.WithMaxRetries(b, r.options.SettleRetries), ctx),
		func(err error, next time.Duration) {
			logger.WarnContext(ctx, "retrying "+op, "error", err, "next", next)
		},
	)
}

func permanentIf(err error, targets ...error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return backoff.Permanent(err)
		}
	}

	return err
}

// settle persists the terminal state and then records it in the workflow
// stats. Stats are only recorded for settlements the store accepted. Store
// errors other than the expected ones are retried.
func (r *Runner) settle(ctx context.Context, logger *slog.Logger, wf *workflow.Workflow, e *workflow.Execution, s workflow.Settlement) {
	err := r.retry(ctx, logger, "settlement", func() error {
		_, err := r.backend.UpdateExecution(ctx, e.ID, s)
		return permanentIf(err, backend.ErrExecutionSettled, backend.ErrExecutionNotFound)
	})
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrExecutionSettled):
			logger.WarnContext(ctx, "execution already settled")
		case errors.Is(err, backend.ErrExecutionNotFound):
			logger.WarnContext(ctx, "execution removed before it settled")
		default:
			logger.ErrorContext(ctx, "could not persist settlement", "error", err)
		}

		return
	}

	err = r.retry(ctx, logger, "stats update", func() error {
		err := r.backend.IncrementWorkflowStats(ctx, wf.ID, backend.StatsDelta{
			Success:    s.Status == workflow.ExecutionStatusCompleted,
			Duration:   s.Duration,
			ExecutedAt: s.CompletedAt,
		})
		return permanentIf(err, backend.ErrWorkflowNotFound)
	})
	if err != nil {
		if errors.Is(err, backend.ErrWorkflowNotFound) {
			logger.WarnContext(ctx, "workflow deleted before execution settled")
		} else {
			logger.ErrorContext(ctx, "could not record workflow stats", "error", fmt.Errorf("incrementing stats: %w", err))
		}
	}

	r.metrics.Counter(metrickeys.ExecutionFinished, metrics.Tags{metrickeys.Status: string(s.Status)}, 1)
	r.metrics.Timing(metrickeys.ExecutionDuration, metrics.Tags{metrickeys.Status: string(s.Status)}, s.Duration)

	logger.DebugContext(ctx, "execution settled",
		log.ExecutionStatusKey, string(s.Status),
		log.DurationKey, s.Duration.Milliseconds(),
	)
}
