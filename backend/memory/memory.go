// Package memory provides a process-local backend. It is the default for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"go.opentelemetry.io/otel/trace"
)

type memoryBackend struct {
	mu sync.RWMutex

	workflows  map[string]*workflow.Workflow
	executions map[string]*workflow.Execution
	templates  map[string]*workflow.Template

	options backend.Options
}

var _ backend.Backend = (*memoryBackend)(nil)

// NewMemoryBackend returns an empty backend. Values are copied on the way in
// and out so callers never share state with the store.
func NewMemoryBackend(opts ...backend.BackendOption) *memoryBackend {
	return &memoryBackend{
		workflows:  map[string]*workflow.Workflow{},
		executions: map[string]*workflow.Execution{},
		templates:  map[string]*workflow.Template{},
		options:    backend.ApplyOptions(opts...),
	}
}

func (b *memoryBackend) Tracer() trace.Tracer {
	return b.options.TracerProvider.Tracer(backend.TracerName)
}

func (b *memoryBackend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "memory"})
}

func (b *memoryBackend) Options() *backend.Options {
	return &b.options
}

func (b *memoryBackend) Close() error {
	return nil
}

func (b *memoryBackend) GetWorkflow(_ context.Context, id string) (*workflow.Workflow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	wf, ok := b.workflows[id]
	if !ok {
		return nil, backend.ErrWorkflowNotFound
	}

	return wf.Clone(), nil
}

func (b *memoryBackend) ListWorkflows(_ context.Context, workspaceID string) ([]*workflow.Workflow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var wfs []*workflow.Workflow
	for _, wf := range b.workflows {
		if wf.WorkspaceID == workspaceID {
			wfs = append(wfs, wf.Clone())
		}
	}

	sort.Slice(wfs, func(i, j int) bool {
		if !wfs[i].CreatedAt.Equal(wfs[j].CreatedAt) {
			return wfs[i].CreatedAt.After(wfs[j].CreatedAt)
		}

		return wfs[i].ID > wfs[j].ID
	})

	return wfs, nil
}

func (b *memoryBackend) CreateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.workflows[wf.ID]; ok {
		return fmt.Errorf("workflow %q: %w", wf.ID, backend.ErrAlreadyExists)
	}

	c := wf.Clone()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	b.workflows[wf.ID] = c

	return nil
}

func (b *memoryBackend) UpdateWorkflow(_ context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wf, ok := b.workflows[id]
	if !ok {
		return nil, backend.ErrWorkflowNotFound
	}

	updated := patch.Apply(wf)
	updated.UpdatedAt = b.options.Clock.Now().UTC()
	b.workflows[id] = updated

	return updated.Clone(), nil
}

func (b *memoryBackend) ToggleWorkflow(_ context.Context, id string, isActive bool) (*workflow.Workflow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wf, ok := b.workflows[id]
	if !ok {
		return nil, backend.ErrWorkflowNotFound
	}

	wf.IsActive = isActive
	wf.UpdatedAt = b.options.Clock.Now().UTC()

	return wf.Clone(), nil
}

func (b *memoryBackend) DeleteWorkflow(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.workflows[id]; !ok {
		return backend.ErrWorkflowNotFound
	}

	delete(b.workflows, id)

	for eid, e := range b.executions {
		if e.WorkflowID == id {
			delete(b.executions, eid)
		}
	}

	return nil
}

func (b *memoryBackend) IncrementWorkflowStats(_ context.Context, workflowID string, delta backend.StatsDelta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wf, ok := b.workflows[workflowID]
	if !ok {
		return backend.ErrWorkflowNotFound
	}

	wf.Stats = wf.Stats.Record(delta.Success, delta.Duration, delta.ExecutedAt)

	return nil
}

func (b *memoryBackend) CreateExecution(_ context.Context, e *workflow.Execution) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.executions[e.ID]; ok {
		return fmt.Errorf("execution %q: %w", e.ID, backend.ErrAlreadyExists)
	}

	c := e.Clone()
	c.StartedAt = c.StartedAt.UTC()
	if c.Steps == nil {
		c.Steps = []workflow.Step{}
	}
	b.executions[e.ID] = c

	return nil
}

func (b *memoryBackend) UpdateExecution(_ context.Context, id string, s workflow.Settlement) (*workflow.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.executions[id]
	if !ok {
		return nil, backend.ErrExecutionNotFound
	}

	if e.Status != workflow.ExecutionStatusRunning {
		return nil, backend.ErrExecutionSettled
	}

	settled := s.Apply(e)
	if settled.Steps == nil {
		settled.Steps = []workflow.Step{}
	}
	b.executions[id] = settled

	return settled.Clone(), nil
}

func (b *memoryBackend) GetExecution(_ context.Context, id string) (*workflow.Execution, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.executions[id]
	if !ok {
		return nil, backend.ErrExecutionNotFound
	}

	return e.Clone(), nil
}

func (b *memoryBackend) ListExecutions(_ context.Context, workflowID string, limit int) ([]*workflow.Execution, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var executions []*workflow.Execution
	for _, e := range b.executions {
		if e.WorkflowID == workflowID {
			executions = append(executions, e)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		if !executions[i].StartedAt.Equal(executions[j].StartedAt) {
			return executions[i].StartedAt.After(executions[j].StartedAt)
		}

		return executions[i].ID > executions[j].ID
	})

	if l := b.options.EffectiveLimit(limit); l > 0 && len(executions) > l {
		executions = executions[:l]
	}

	result := make([]*workflow.Execution, 0, len(executions))
	for _, e := range executions {
		result = append(result, e.Clone())
	}

	return result, nil
}

func (b *memoryBackend) GetTemplate(_ context.Context, id string) (*workflow.Template, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.templates[id]
	if !ok {
		return nil, backend.ErrTemplateNotFound
	}

	return t.Clone(), nil
}

func (b *memoryBackend) ListTemplates(_ context.Context, filter workflow.TemplateFilter) ([]*workflow.Template, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var templates []*workflow.Template
	for _, t := range b.templates {
		if filter.Match(t) {
			templates = append(templates, t.Clone())
		}
	}

	sort.Slice(templates, func(i, j int) bool {
		a, b := templates[i], templates[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.ID < b.ID
	})

	return templates, nil
}

func (b *memoryBackend) CreateTemplate(_ context.Context, t *workflow.Template) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.templates[t.ID]; ok {
		return fmt.Errorf("template %q: %w", t.ID, backend.ErrAlreadyExists)
	}

	c := t.Clone()
	c.CreatedAt = c.CreatedAt.UTC()
	b.templates[t.ID] = c

	return nil
}

func (b *memoryBackend) IncrementTemplateUsage(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.templates[id]
	if !ok {
		return backend.ErrTemplateNotFound
	}

	t.UsageCount++

	return nil
}
