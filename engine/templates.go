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
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetWorkflowTemplates lists public templates, most used first. An empty
// category lists all of them.
func (e *Engine) GetWorkflowTemplates(ctx context.Context, category string) ([]*workflow.Template, error) {
	filter := workflow.TemplateFilter{Category: category, PublicOnly: true}
	tags := metrics.Tags{metrickeys.Category: category}

	if e.templates != nil {
		if item := e.templates.Get(filter); item != nil {
			e.metrics.Counter(metrickeys.TemplateCacheHit, tags, 1)
			return cloneTemplates(item.Value()), nil
		}

		e.metrics.Counter(metrickeys.TemplateCacheMiss, tags, 1)
	}

	templates, err := e.backend.ListTemplates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	if e.templates != nil {
		e.templates.Set(filter, cloneTemplates(templates), ttlcache.DefaultTTL)
		e.metrics.Gauge(metrickeys.TemplateCacheSize, nil, int64(e.templates.Len()))
	}

	return templates, nil
}

func cloneTemplates(templates []*workflow.Template) []*workflow.Template {
	c := make([]*workflow.Template, 0, len(templates))
	for _, t := range templates {
		c = append(c, t.Clone())
	}

	return c
}

func (e *Engine) GetWorkflowTemplate(ctx context.Context, id string) (*workflow.Template, error) {
	t, err := e.backend.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting template: %w", err)
	}

	return t, nil
}

// CreateWorkflowFromTemplate creates a new workflow in workspaceID from a
// template's body, replacing top level fields with the given overrides. The
// template's usage count goes up by one for every workflow created.
func (e *Engine) CreateWorkflowFromTemplate(ctx context.Context, templateID, workspaceID string, overrides *workflow.Overrides) (*workflow.Workflow, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreateWorkflowFromTemplate", trace.WithAttributes(
		attribute.String(tracing.TemplateID, templateID),
		attribute.String(tracing.WorkspaceID, workspaceID),
	))
	defer span.End()

	t, err := e.backend.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("getting template: %w", err))
	}

	wf := t.Instantiate(workspaceID, overrides)
	if err := e.validate(wf); err != nil {
		return nil, err
	}

	if err := e.backend.IncrementTemplateUsage(ctx, templateID); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("incrementing template usage: %w", err))
	}

	if e.templates != nil {
		// Listings are ordered by usage
		e.templates.DeleteAll()
	}

	now := e.clock.Now().UTC()
	wf.ID = uuid.NewString()
	wf.Version = 1
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := e.backend.CreateWorkflow(ctx, wf); err != nil {
		return nil, tracing.WithSpanError(span, fmt.Errorf("creating workflow: %w", err))
	}

	e.logger.DebugContext(ctx, "created workflow from template",
		log.TemplateIDKey, templateID,
		log.WorkflowIDKey, wf.ID,
		log.WorkspaceIDKey, workspaceID,
	)
	e.metrics.Counter(metrickeys.TemplateInstantiated, metrics.Tags{metrickeys.Category: t.Category}, 1)

	return wf, nil
}
