package test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newWorkflow(t *testing.T, workspaceID string) *workflow.Workflow {
	t.Helper()

	conds, err := condition.Parse([]byte(`{"operator":"AND","rules":[{"field":"amount","operator":"greater_than","value":100}]}`))
	require.NoError(t, err)

	return &workflow.Workflow{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        "Large orders",
		Description: "Alert on large orders",
		Trigger:     json.RawMessage(`{"type":"event","event":"order.created"}`),
		Conditions:  conds,
		Actions: []action.Descriptor{
			{Type: action.CreateAlert, Config: map[string]any{"name": "Large order"}},
			{Type: action.Webhook, Config: map[string]any{"url": "https://example.com/hook"}},
		},
		Nodes:     json.RawMessage(`[{"id":"n1"}]`),
		Edges:     json.RawMessage(`[]`),
		IsActive:  true,
		Version:   1,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func newExecution(workflowID string, startedAt time.Time) *workflow.Execution {
	return &workflow.Execution{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		TriggerData: json.RawMessage(`{"amount":150,"region":"US"}`),
		Status:      workflow.ExecutionStatusRunning,
		Steps:       []workflow.Step{},
		StartedAt:   startedAt,
	}
}

func newTemplate(category string, public bool) *workflow.Template {
	return &workflow.Template{
		ID:          uuid.NewString(),
		Name:        "Template " + category,
		Description: "A template",
		Category:    category,
		IsPublic:    public,
		Rating:      4.5,
		Body: workflow.TemplateBody{
			Trigger: json.RawMessage(`{"type":"schedule"}`),
			Actions: []action.Descriptor{{Type: action.SendEmail, Config: map[string]any{"to": "ops@example.com"}}},
		},
		CreatedAt: baseTime,
	}
}

func actionsJSON(t *testing.T, actions []action.Descriptor) string {
	t.Helper()

	b, err := json.Marshal(actions)
	require.NoError(t, err)

	return string(b)
}

func treeJSON(t *testing.T, tree *condition.Tree) string {
	t.Helper()

	b, err := json.Marshal(tree)
	require.NoError(t, err)

	return string(b)
}

func BackendTest(t *testing.T, setup func() backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend)
	}{
		{
			name: "CreateWorkflow_RoundTrips",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				got, err := b.GetWorkflow(ctx, wf.ID)
				require.NoError(t, err)

				require.Equal(t, wf.ID, got.ID)
				require.Equal(t, "ws-1", got.WorkspaceID)
				require.Equal(t, wf.Name, got.Name)
				require.Equal(t, wf.Description, got.Description)
				require.JSONEq(t, string(wf.Trigger), string(got.Trigger))
				require.JSONEq(t, treeJSON(t, wf.Conditions), treeJSON(t, got.Conditions))
				require.JSONEq(t, actionsJSON(t, wf.Actions), actionsJSON(t, got.Actions))
				require.JSONEq(t, string(wf.Nodes), string(got.Nodes))
				require.True(t, got.IsActive)
				require.Equal(t, 1, got.Version)
				require.Equal(t, workflow.Stats{}, got.Stats)
				require.True(t, baseTime.Equal(got.CreatedAt))
			},
		},
		{
			name: "CreateWorkflow_WithoutConditions",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				wf.Conditions = nil
				wf.Nodes = nil
				wf.Edges = nil
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				got, err := b.GetWorkflow(ctx, wf.ID)
				require.NoError(t, err)
				require.Nil(t, got.Conditions)
				require.Empty(t, got.Nodes)
			},
		},
		{
			name: "CreateWorkflow_SameIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))
				require.Error(t, b.CreateWorkflow(ctx, wf))
			},
		},
		{
			name: "GetWorkflow_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetWorkflow(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
				require.ErrorIs(t, err, backend.ErrNotFound)
			},
		},
		{
			name: "ListWorkflows_FiltersByWorkspace",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				ws := uuid.NewString()

				first := newWorkflow(t, ws)
				second := newWorkflow(t, ws)
				second.CreatedAt = baseTime.Add(time.Minute)
				other := newWorkflow(t, uuid.NewString())

				for _, wf := range []*workflow.Workflow{first, second, other} {
					require.NoError(t, b.CreateWorkflow(ctx, wf))
				}

				wfs, err := b.ListWorkflows(ctx, ws)
				require.NoError(t, err)
				require.Len(t, wfs, 2)
				require.Equal(t, second.ID, wfs[0].ID)
				require.Equal(t, first.ID, wfs[1].ID)

				none, err := b.ListWorkflows(ctx, uuid.NewString())
				require.NoError(t, err)
				require.Empty(t, none)
			},
		},
		{
			name: "UpdateWorkflow_BumpsVersionByOne",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				name := "Renamed"
				desc := "Changed"
				actions := []action.Descriptor{{Type: action.SlackMessage, Config: map[string]any{"message": "hi"}}}

				updated, err := b.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Name: &name, Description: &desc, Actions: &actions})
				require.NoError(t, err)
				require.Equal(t, 2, updated.Version)
				require.Equal(t, "Renamed", updated.Name)
				require.Equal(t, "Changed", updated.Description)
				require.Len(t, updated.Actions, 1)
				require.Equal(t, action.SlackMessage, updated.Actions[0].Type)

				// Untouched fields are kept
				require.JSONEq(t, string(wf.Trigger), string(updated.Trigger))
				require.NotNil(t, updated.Conditions)

				updated, err = b.UpdateWorkflow(ctx, wf.ID, workflow.Patch{})
				require.NoError(t, err)
				require.Equal(t, 3, updated.Version)

				got, err := b.GetWorkflow(ctx, wf.ID)
				require.NoError(t, err)
				require.Equal(t, 3, got.Version)
				require.Equal(t, "Renamed", got.Name)
			},
		},
		{
			name: "UpdateWorkflow_ClearsConditions",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				updated, err := b.UpdateWorkflow(ctx, wf.ID, workflow.Patch{ClearConditions: true})
				require.NoError(t, err)
				require.Nil(t, updated.Conditions)
			},
		},
		{
			name: "UpdateWorkflow_KeepsStats",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))
				require.NoError(t, b.IncrementWorkflowStats(ctx, wf.ID, backend.StatsDelta{Success: true, Duration: time.Second, ExecutedAt: baseTime}))

				name := "Renamed"
				updated, err := b.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Name: &name})
				require.NoError(t, err)
				require.Equal(t, int64(1), updated.Stats.ExecutionCount)
				require.Equal(t, int64(1), updated.Stats.SuccessCount)
			},
		},
		{
			name: "UpdateWorkflow_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.UpdateWorkflow(ctx, uuid.NewString(), workflow.Patch{})
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
			},
		},
		{
			name: "ToggleWorkflow_DoesNotBumpVersion",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				toggled, err := b.ToggleWorkflow(ctx, wf.ID, false)
				require.NoError(t, err)
				require.False(t, toggled.IsActive)
				require.Equal(t, 1, toggled.Version)

				// Same value again is not an error
				toggled, err = b.ToggleWorkflow(ctx, wf.ID, false)
				require.NoError(t, err)
				require.False(t, toggled.IsActive)

				toggled, err = b.ToggleWorkflow(ctx, wf.ID, true)
				require.NoError(t, err)
				require.True(t, toggled.IsActive)
				require.Equal(t, 1, toggled.Version)
			},
		},
		{
			name: "ToggleWorkflow_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.ToggleWorkflow(ctx, uuid.NewString(), true)
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
			},
		},
		{
			name: "DeleteWorkflow_RemovesExecutions",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				other := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, other))

				e := newExecution(wf.ID, baseTime)
				require.NoError(t, b.CreateExecution(ctx, e))
				kept := newExecution(other.ID, baseTime)
				require.NoError(t, b.CreateExecution(ctx, kept))

				require.NoError(t, b.DeleteWorkflow(ctx, wf.ID))

				_, err := b.GetWorkflow(ctx, wf.ID)
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)

				_, err = b.GetExecution(ctx, e.ID)
				require.ErrorIs(t, err, backend.ErrExecutionNotFound)

				_, err = b.GetExecution(ctx, kept.ID)
				require.NoError(t, err)
			},
		},
		{
			name: "DeleteWorkflow_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.DeleteWorkflow(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
			},
		},
		{
			name: "CreateExecution_RoundTrips",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				e := newExecution(wf.ID, baseTime)
				e.RetryOf = uuid.NewString()
				require.NoError(t, b.CreateExecution(ctx, e))

				got, err := b.GetExecution(ctx, e.ID)
				require.NoError(t, err)
				require.Equal(t, wf.ID, got.WorkflowID)
				require.Equal(t, workflow.ExecutionStatusRunning, got.Status)
				require.JSONEq(t, `{"amount":150,"region":"US"}`, string(got.TriggerData))
				require.Empty(t, got.Steps)
				require.True(t, baseTime.Equal(got.StartedAt))
				require.Nil(t, got.CompletedAt)
				require.Nil(t, got.Duration)
				require.Empty(t, got.Error)
				require.Equal(t, e.RetryOf, got.RetryOf)
			},
		},
		{
			name: "GetExecution_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetExecution(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrExecutionNotFound)
				require.ErrorIs(t, err, backend.ErrNotFound)
			},
		},
		{
			name: "UpdateExecution_SettlesOnce",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				e := newExecution(wf.ID, baseTime)
				require.NoError(t, b.CreateExecution(ctx, e))

				settlement := workflow.Settlement{
					Status: workflow.ExecutionStatusFailed,
					Steps: []workflow.Step{
						{Kind: string(action.CreateAlert), Status: workflow.StepStatusSuccess, Result: json.RawMessage(`{"created":true,"id":"a1"}`), Duration: 5 * time.Millisecond},
						{Kind: string(action.Webhook), Status: workflow.StepStatusFailed, Error: "webhook returned status 500", Duration: 7 * time.Millisecond},
					},
					CompletedAt: baseTime.Add(20 * time.Millisecond),
					Duration:    20 * time.Millisecond,
					Error:       "webhook returned status 500",
				}

				settled, err := b.UpdateExecution(ctx, e.ID, settlement)
				require.NoError(t, err)
				require.Equal(t, workflow.ExecutionStatusFailed, settled.Status)
				require.Len(t, settled.Steps, 2)
				require.Equal(t, workflow.StepStatusSuccess, settled.Steps[0].Status)
				require.JSONEq(t, `{"created":true,"id":"a1"}`, string(settled.Steps[0].Result))
				require.Equal(t, 5*time.Millisecond, settled.Steps[0].Duration)
				require.Equal(t, "webhook returned status 500", settled.Steps[1].Error)
				require.Equal(t, "webhook returned status 500", settled.Error)
				require.NotNil(t, settled.CompletedAt)
				require.True(t, baseTime.Add(20*time.Millisecond).Equal(*settled.CompletedAt))
				require.Equal(t, 20*time.Millisecond, *settled.Duration)

				// Trigger data is untouched by settlement
				require.JSONEq(t, `{"amount":150,"region":"US"}`, string(settled.TriggerData))

				_, err = b.UpdateExecution(ctx, e.ID, workflow.Settlement{Status: workflow.ExecutionStatusCompleted, CompletedAt: baseTime})
				require.ErrorIs(t, err, backend.ErrExecutionSettled)

				got, err := b.GetExecution(ctx, e.ID)
				require.NoError(t, err)
				require.Equal(t, workflow.ExecutionStatusFailed, got.Status)
			},
		},
		{
			name: "UpdateExecution_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.UpdateExecution(ctx, uuid.NewString(), workflow.Settlement{Status: workflow.ExecutionStatusCompleted, CompletedAt: baseTime})
				require.ErrorIs(t, err, backend.ErrExecutionNotFound)
			},
		},
		{
			name: "ListExecutions_NewestFirstWithLimit",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				var ids []string
				for i := 0; i < 5; i++ {
					e := newExecution(wf.ID, baseTime.Add(time.Duration(i)*time.Second))
					require.NoError(t, b.CreateExecution(ctx, e))
					ids = append(ids, e.ID)
				}

				all, err := b.ListExecutions(ctx, wf.ID, 0)
				require.NoError(t, err)
				require.Len(t, all, 5)
				require.Equal(t, ids[4], all[0].ID)
				require.Equal(t, ids[0], all[4].ID)

				limited, err := b.ListExecutions(ctx, wf.ID, 2)
				require.NoError(t, err)
				require.Len(t, limited, 2)
				require.Equal(t, ids[4], limited[0].ID)
				require.Equal(t, ids[3], limited[1].ID)

				none, err := b.ListExecutions(ctx, uuid.NewString(), 10)
				require.NoError(t, err)
				require.Empty(t, none)
			},
		},
		{
			name: "IncrementWorkflowStats_RunningAverage",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				require.NoError(t, b.IncrementWorkflowStats(ctx, wf.ID, backend.StatsDelta{Success: true, Duration: 100 * time.Millisecond, ExecutedAt: baseTime}))
				require.NoError(t, b.IncrementWorkflowStats(ctx, wf.ID, backend.StatsDelta{Success: false, Duration: 300 * time.Millisecond, ExecutedAt: baseTime.Add(time.Second)}))

				got, err := b.GetWorkflow(ctx, wf.ID)
				require.NoError(t, err)
				require.Equal(t, int64(2), got.Stats.ExecutionCount)
				require.Equal(t, int64(1), got.Stats.SuccessCount)
				require.Equal(t, int64(1), got.Stats.FailureCount)
				require.Equal(t, 200*time.Millisecond, got.Stats.AverageExecutionTime)
				require.Equal(t, 400*time.Millisecond, got.Stats.TotalExecutionTime)
				require.NotNil(t, got.Stats.LastExecutedAt)
				require.True(t, baseTime.Add(time.Second).Equal(*got.Stats.LastExecutedAt))

				// Stats never bump the version
				require.Equal(t, 1, got.Version)
			},
		},
		{
			name: "IncrementWorkflowStats_ConcurrentKeepsInvariant",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wf := newWorkflow(t, "ws-1")
				require.NoError(t, b.CreateWorkflow(ctx, wf))

				const n = 20

				var wg sync.WaitGroup
				errs := make(chan error, n)
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()

						errs <- b.IncrementWorkflowStats(ctx, wf.ID, backend.StatsDelta{
							Success:    i%4 != 0,
							Duration:   10 * time.Millisecond,
							ExecutedAt: baseTime,
						})
					}(i)
				}

				wg.Wait()
				close(errs)

				for err := range errs {
					require.NoError(t, err)
				}

				got, err := b.GetWorkflow(ctx, wf.ID)
				require.NoError(t, err)
				require.Equal(t, int64(n), got.Stats.ExecutionCount)
				require.Equal(t, int64(15), got.Stats.SuccessCount)
				require.Equal(t, int64(5), got.Stats.FailureCount)
				require.Equal(t, got.Stats.ExecutionCount, got.Stats.SuccessCount+got.Stats.FailureCount)
				require.Equal(t, 10*time.Millisecond, got.Stats.AverageExecutionTime)
			},
		},
		{
			name: "IncrementWorkflowStats_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.IncrementWorkflowStats(ctx, uuid.NewString(), backend.StatsDelta{Success: true, ExecutedAt: baseTime})
				require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
			},
		},
		{
			name: "Templates_CreateGetList",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				category := uuid.NewString()

				pub := newTemplate(category, true)
				priv := newTemplate(category, false)
				other := newTemplate(uuid.NewString(), true)

				for _, tmpl := range []*workflow.Template{pub, priv, other} {
					require.NoError(t, b.CreateTemplate(ctx, tmpl))
				}

				got, err := b.GetTemplate(ctx, pub.ID)
				require.NoError(t, err)
				require.Equal(t, pub.Name, got.Name)
				require.Equal(t, category, got.Category)
				require.True(t, got.IsPublic)
				require.Equal(t, 4.5, got.Rating)
				require.Equal(t, int64(0), got.UsageCount)
				require.JSONEq(t, `{"type":"schedule"}`, string(got.Body.Trigger))
				require.Len(t, got.Body.Actions, 1)
				require.Nil(t, got.Body.Conditions)

				inCategory, err := b.ListTemplates(ctx, workflow.TemplateFilter{Category: category})
				require.NoError(t, err)
				require.Len(t, inCategory, 2)

				publicInCategory, err := b.ListTemplates(ctx, workflow.TemplateFilter{Category: category, PublicOnly: true})
				require.NoError(t, err)
				require.Len(t, publicInCategory, 1)
				require.Equal(t, pub.ID, publicInCategory[0].ID)

				all, err := b.ListTemplates(ctx, workflow.TemplateFilter{})
				require.NoError(t, err)
				require.GreaterOrEqual(t, len(all), 3)
			},
		},
		{
			name: "GetTemplate_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetTemplate(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrTemplateNotFound)
				require.ErrorIs(t, err, backend.ErrNotFound)
			},
		},
		{
			name: "IncrementTemplateUsage",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				tmpl := newTemplate("ops", true)
				require.NoError(t, b.CreateTemplate(ctx, tmpl))

				var wg sync.WaitGroup
				errs := make(chan error, 5)
				for i := 0; i < 5; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- b.IncrementTemplateUsage(ctx, tmpl.ID)
					}()
				}
				wg.Wait()
				close(errs)

				for err := range errs {
					require.NoError(t, err)
				}

				got, err := b.GetTemplate(ctx, tmpl.ID)
				require.NoError(t, err)
				require.Equal(t, int64(5), got.UsageCount)

				err = b.IncrementTemplateUsage(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrTemplateNotFound)
			},
		},
		{
			name: "SeedTemplates_SkipsExisting",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				first := newTemplate("seed", true)
				second := newTemplate("seed", true)

				n, err := backend.SeedTemplates(ctx, b, []*workflow.Template{first})
				require.NoError(t, err)
				require.Equal(t, 1, n)

				n, err = backend.SeedTemplates(ctx, b, []*workflow.Template{first, second})
				require.NoError(t, err)
				require.Equal(t, 1, n)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()

			tt.f(t, ctx, b)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}
