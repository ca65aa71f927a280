package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/memory"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ack(ctx context.Context, req action.Request) (any, error) {
	return map[string]any{"sent": true}, nil
}

func newEngine(t *testing.T, opts ...action.Option) (*Engine, backend.Backend) {
	t.Helper()

	b := memory.NewMemoryBackend()

	handlers := []action.Option{}
	for _, typ := range action.Types() {
		handlers = append(handlers, action.WithHandler(typ, ack))
	}

	r := action.NewRegistry(action.Collaborators{}, append(handlers, opts...)...)
	e := New(b, r)

	t.Cleanup(e.WaitForCompletion)

	return e, b
}

func orderWorkflow(t *testing.T, actions ...action.Type) *workflow.Workflow {
	t.Helper()

	conds, err := condition.Parse([]byte(`{"operator":"AND","rules":[
		{"field":"amount","operator":"greater_than","value":100},
		{"field":"region","operator":"equals","value":"US"}
	]}`))
	require.NoError(t, err)

	wf := &workflow.Workflow{
		WorkspaceID: "ws-1",
		Name:        "Large US orders",
		Trigger:     json.RawMessage(`{"type":"event","event":"order.created"}`),
		Conditions:  conds,
		IsActive:    true,
	}

	for _, a := range actions {
		wf.Actions = append(wf.Actions, action.Descriptor{Type: a, Config: map[string]any{}})
	}

	return wf
}

func Test_Engine_CreateWorkflow(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	def := orderWorkflow(t, action.CreateAlert)
	def.Version = 7
	def.Stats.ExecutionCount = 3

	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)
	require.NotEmpty(t, wf.ID)
	require.Equal(t, 1, wf.Version)
	require.Equal(t, workflow.Stats{}, wf.Stats)
	require.False(t, wf.CreatedAt.IsZero())

	got, err := e.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, wf.Name, got.Name)

	// The definition passed in is not modified
	require.Empty(t, def.ID)
}

func Test_Engine_CreateWorkflow_Validation(t *testing.T) {
	e, _ := newEngine(t)

	tests := []struct {
		name   string
		modify func(wf *workflow.Workflow)
		msg    string
	}{
		{
			name:   "missing name",
			modify: func(wf *workflow.Workflow) { wf.Name = " " },
			msg:    "invalid workflow: name is required",
		},
		{
			name:   "missing workspace",
			modify: func(wf *workflow.Workflow) { wf.WorkspaceID = "" },
			msg:    "invalid workflow: workspace id is required",
		},
		{
			name: "unknown action",
			modify: func(wf *workflow.Workflow) {
				wf.Actions = append(wf.Actions, action.Descriptor{Type: "fax"})
			},
			msg: `invalid workflow: action 1: unknown action type "fax"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := orderWorkflow(t, action.SendEmail)
			tt.modify(wf)

			_, err := e.CreateWorkflow(context.Background(), wf)
			require.ErrorIs(t, err, ErrInvalidWorkflow)
			require.EqualError(t, err, tt.msg)
		})
	}
}

func Test_Engine_GetWorkflows(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	ws := uuid.NewString()
	for i := 0; i < 3; i++ {
		wf := orderWorkflow(t)
		wf.WorkspaceID = ws
		_, err := e.CreateWorkflow(ctx, wf)
		require.NoError(t, err)
	}

	wfs, err := e.GetWorkflows(ctx, ws)
	require.NoError(t, err)
	require.Len(t, wfs, 3)
}

func Test_Engine_UpdateWorkflow_BumpsVersion(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t, action.SendEmail))
	require.NoError(t, err)

	name := "Renamed"
	updated, err := e.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, wf.Version+1, updated.Version)
	require.Equal(t, "Renamed", updated.Name)

	actions := []action.Descriptor{{Type: action.Webhook}, {Type: action.SlackMessage}, {Type: action.SendEmail}}
	updated, err = e.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Actions: &actions})
	require.NoError(t, err)
	require.Equal(t, wf.Version+2, updated.Version)
	require.Len(t, updated.Actions, 3)

	updated, err = e.UpdateWorkflow(ctx, wf.ID, workflow.Patch{})
	require.NoError(t, err)
	require.Equal(t, wf.Version+3, updated.Version)
}

func Test_Engine_UpdateWorkflow_Validation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t, action.SendEmail))
	require.NoError(t, err)

	empty := ""
	_, err = e.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidWorkflow)

	actions := []action.Descriptor{{Type: "fax"}}
	_, err = e.UpdateWorkflow(ctx, wf.ID, workflow.Patch{Actions: &actions})
	require.ErrorIs(t, err, ErrInvalidWorkflow)

	got, err := e.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)

	_, err = e.UpdateWorkflow(ctx, uuid.NewString(), workflow.Patch{})
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func Test_Engine_ToggleWorkflow_KeepsVersion(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t))
	require.NoError(t, err)

	toggled, err := e.ToggleWorkflow(ctx, wf.ID, false)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)
	require.Equal(t, 1, toggled.Version)
}

func Test_Engine_ExecuteWorkflow_ConditionsMet(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t, action.CreateAlert, action.Webhook, action.SlackMessage))
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, map[string]any{"amount": 150, "region": "US"})
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusRunning, exec.Status)
	require.Empty(t, exec.Steps)

	settled, err := e.WaitForExecution(ctx, exec.ID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusCompleted, settled.Status)
	require.Len(t, settled.Steps, 3)

	for _, s := range settled.Steps {
		require.Equal(t, workflow.StepStatusSuccess, s.Status)
	}
}

func Test_Engine_ExecuteWorkflow_ConditionsNotMet(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t, action.CreateAlert, action.Webhook))
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, json.RawMessage(`{"amount":50,"region":"US"}`))
	require.NoError(t, err)

	e.WaitForCompletion()

	settled, err := e.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusCompleted, settled.Status)
	require.Equal(t, []workflow.Step{{Kind: workflow.StepKindCondition, Status: workflow.StepStatusNotMet}}, settled.Steps)
	require.JSONEq(t, `{"amount":50,"region":"US"}`, string(settled.TriggerData))
}

func Test_Engine_ExecuteWorkflow_SecondActionFails(t *testing.T) {
	var thirdCalled bool

	e, _ := newEngine(t,
		action.WithHandler(action.Webhook, func(ctx context.Context, req action.Request) (any, error) {
			return nil, errors.New("webhook returned status 500")
		}),
		action.WithHandler(action.SlackMessage, func(ctx context.Context, req action.Request) (any, error) {
			thirdCalled = true
			return map[string]any{"sent": true}, nil
		}),
	)
	ctx := context.Background()

	def := orderWorkflow(t, action.CreateAlert, action.Webhook, action.SlackMessage)
	def.Conditions = nil
	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, nil)
	require.NoError(t, err)

	e.WaitForCompletion()

	settled, err := e.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusFailed, settled.Status)
	require.Len(t, settled.Steps, 2)
	require.Equal(t, workflow.StepStatusSuccess, settled.Steps[0].Status)
	require.Equal(t, workflow.StepStatusFailed, settled.Steps[1].Status)
	require.Equal(t, "webhook returned status 500", settled.Error)
	require.False(t, thirdCalled)

	got, err := e.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Stats.FailureCount)
	require.Equal(t, got.Stats.ExecutionCount, got.Stats.SuccessCount+got.Stats.FailureCount)
}

func Test_Engine_ExecuteWorkflow_Inactive(t *testing.T) {
	e, b := newEngine(t)
	ctx := context.Background()

	def := orderWorkflow(t, action.SendEmail)
	def.IsActive = false
	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(ctx, wf.ID, map[string]any{"amount": 150})
	require.ErrorIs(t, err, ErrWorkflowInactive)
	require.ErrorIs(t, err, ErrInvalidState)

	executions, err := b.ListExecutions(ctx, wf.ID, 0)
	require.NoError(t, err)
	require.Empty(t, executions)
}

func Test_Engine_ExecuteWorkflow_NotFound(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.ExecuteWorkflow(context.Background(), uuid.NewString(), nil)
	require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
}

func Test_Engine_ExecuteWorkflow_InvalidTriggerData(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t))
	require.NoError(t, err)

	_, err = e.ExecuteWorkflow(ctx, wf.ID, json.RawMessage(`{"amount":`))
	require.Error(t, err)

	_, err = e.ExecuteWorkflow(ctx, wf.ID, func() {})
	require.Error(t, err)
}

func Test_Engine_ExecuteWorkflow_ReturnsBeforeSettlement(t *testing.T) {
	release := make(chan struct{})

	e, _ := newEngine(t, action.WithHandler(action.SendEmail, func(ctx context.Context, req action.Request) (any, error) {
		<-release
		return map[string]any{"sent": true}, nil
	}))
	ctx := context.Background()

	def := orderWorkflow(t, action.SendEmail)
	def.Conditions = nil
	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, nil)
	require.NoError(t, err)

	stored, err := e.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusRunning, stored.Status)

	_, err = e.WaitForExecution(ctx, exec.ID, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrExecutionTimeout)

	// Retrying a running execution is refused
	_, err = e.RetryExecution(ctx, exec.ID)
	require.ErrorIs(t, err, ErrExecutionNotFailed)

	close(release)

	settled, err := e.WaitForExecution(ctx, exec.ID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusCompleted, settled.Status)
}

func Test_Engine_RetryExecution(t *testing.T) {
	e, _ := newEngine(t, action.WithHandler(action.Webhook, func(ctx context.Context, req action.Request) (any, error) {
		return nil, errors.New("connection refused")
	}))
	ctx := context.Background()

	def := orderWorkflow(t, action.Webhook)
	def.Conditions = nil
	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, map[string]any{"order": "o-1"})
	require.NoError(t, err)

	failed, err := e.WaitForExecution(ctx, exec.ID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionStatusFailed, failed.Status)

	retry, err := e.RetryExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.NotEqual(t, exec.ID, retry.ID)
	require.Equal(t, exec.ID, retry.RetryOf)
	require.Equal(t, workflow.ExecutionStatusRunning, retry.Status)
	require.JSONEq(t, string(failed.TriggerData), string(retry.TriggerData))

	e.WaitForCompletion()

	// The original execution is untouched
	original, err := e.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, failed, original)

	executions, err := e.GetExecutions(ctx, wf.ID, 0)
	require.NoError(t, err)
	require.Len(t, executions, 2)

	got, err := e.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Stats.ExecutionCount)
	require.Equal(t, int64(2), got.Stats.FailureCount)
}

func Test_Engine_RetryExecution_Completed(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	def := orderWorkflow(t, action.SendEmail)
	def.Conditions = nil
	wf, err := e.CreateWorkflow(ctx, def)
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, nil)
	require.NoError(t, err)

	e.WaitForCompletion()

	_, err = e.RetryExecution(ctx, exec.ID)
	require.ErrorIs(t, err, ErrExecutionNotFailed)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = e.RetryExecution(ctx, uuid.NewString())
	require.ErrorIs(t, err, backend.ErrExecutionNotFound)
}

func Test_Engine_GetExecutions_UnknownWorkflow(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.GetExecutions(context.Background(), uuid.NewString(), 10)
	require.ErrorIs(t, err, backend.ErrWorkflowNotFound)
}

func Test_Engine_DeleteWorkflow_RemovesExecutions(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, orderWorkflow(t))
	require.NoError(t, err)

	exec, err := e.ExecuteWorkflow(ctx, wf.ID, nil)
	require.NoError(t, err)

	e.WaitForCompletion()

	require.NoError(t, e.DeleteWorkflow(ctx, wf.ID))

	_, err = e.GetExecution(ctx, exec.ID)
	require.ErrorIs(t, err, backend.ErrNotFound)

	require.ErrorIs(t, e.DeleteWorkflow(ctx, wf.ID), backend.ErrWorkflowNotFound)
}
