package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
	"github.com/stretchr/testify/require"
)

func mustTree(t *testing.T, s string) *condition.Tree {
	t.Helper()

	tree, err := condition.Parse([]byte(s))
	require.NoError(t, err)

	return tree
}

func Test_Stats_Record(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	s := Stats{}
	s = s.Record(true, 100*time.Millisecond, now)
	s = s.Record(false, 300*time.Millisecond, now.Add(time.Second))

	require.Equal(t, int64(2), s.ExecutionCount)
	require.Equal(t, int64(1), s.SuccessCount)
	require.Equal(t, int64(1), s.FailureCount)
	require.Equal(t, s.ExecutionCount, s.SuccessCount+s.FailureCount)
	require.Equal(t, 400*time.Millisecond, s.TotalExecutionTime)
	require.Equal(t, 200*time.Millisecond, s.AverageExecutionTime)
	require.Equal(t, now.Add(time.Second), *s.LastExecutedAt)
}

func Test_Patch_BumpsVersionOnce(t *testing.T) {
	wf := &Workflow{Name: "a", Version: 3}

	name := "b"
	desc := "d"
	got := Patch{Name: &name, Description: &desc}.Apply(wf)
	require.Equal(t, 4, got.Version)
	require.Equal(t, "b", got.Name)
	require.Equal(t, "d", got.Description)

	// Original untouched
	require.Equal(t, 3, wf.Version)
	require.Equal(t, "a", wf.Name)

	empty := Patch{}.Apply(got)
	require.Equal(t, 5, empty.Version)
	require.Equal(t, "b", empty.Name)
}

func Test_Patch_Conditions(t *testing.T) {
	wf := &Workflow{Conditions: mustTree(t, `{"field":"a","operator":"equals","value":1}`)}

	replaced := Patch{Conditions: mustTree(t, `{"field":"b","operator":"equals","value":2}`)}.Apply(wf)
	require.Equal(t, "b", replaced.Conditions.Root.(*condition.Leaf).Field)

	cleared := Patch{ClearConditions: true}.Apply(wf)
	require.Nil(t, cleared.Conditions)
	require.NotNil(t, wf.Conditions)
}

func Test_Workflow_CloneIsIndependent(t *testing.T) {
	at := time.Now()
	wf := &Workflow{
		Trigger: json.RawMessage(`{"type":"manual"}`),
		Actions: []action.Descriptor{{Type: action.SendEmail, Config: map[string]any{"to": "x"}}},
		Stats:   Stats{LastExecutedAt: &at},
	}

	c := wf.Clone()
	c.Trigger[2] = 'X'
	c.Actions[0].Config["to"] = "y"
	*c.Stats.LastExecutedAt = at.Add(time.Hour)

	require.JSONEq(t, `{"type":"manual"}`, string(wf.Trigger))
	require.Equal(t, "x", wf.Actions[0].Config["to"])
	require.Equal(t, at, *wf.Stats.LastExecutedAt)
}

func Test_Template_Instantiate(t *testing.T) {
	tmpl := &Template{
		ID:          "t1",
		Name:        "High value order",
		Description: "Alert on large orders",
		Body: TemplateBody{
			Trigger:    json.RawMessage(`{"type":"event"}`),
			Conditions: mustTree(t, `{"field":"amount","operator":"greater_than","value":100}`),
			Actions:    []action.Descriptor{{Type: action.CreateAlert, Config: map[string]any{"name": "big"}}},
			Nodes:      json.RawMessage(`[{"id":"n1"}]`),
		},
	}

	t.Run("Defaults", func(t *testing.T) {
		wf := tmpl.Instantiate("ws-1", nil)
		require.Equal(t, "ws-1", wf.WorkspaceID)
		require.Equal(t, "High value order", wf.Name)
		require.Equal(t, "Alert on large orders", wf.Description)
		require.True(t, wf.IsActive)
		require.JSONEq(t, `{"type":"event"}`, string(wf.Trigger))
		require.JSONEq(t, `[{"id":"n1"}]`, string(wf.Nodes))
		require.Len(t, wf.Actions, 1)
		require.NotNil(t, wf.Conditions)
	})

	t.Run("Overrides", func(t *testing.T) {
		name := "Mine"
		inactive := false
		actions := []action.Descriptor{
			{Type: action.SendEmail, Config: map[string]any{"to": "a"}},
			{Type: action.Webhook, Config: map[string]any{"url": "http://x"}},
		}

		wf := tmpl.Instantiate("ws-1", &Overrides{
			Name:     &name,
			Actions:  &actions,
			IsActive: &inactive,
		})
		require.Equal(t, "Mine", wf.Name)
		require.Equal(t, "Alert on large orders", wf.Description)
		require.False(t, wf.IsActive)
		require.Len(t, wf.Actions, 2)
		require.NotNil(t, wf.Conditions)
	})

	t.Run("DoesNotShareTemplateState", func(t *testing.T) {
		wf := tmpl.Instantiate("ws-1", nil)
		wf.Actions[0].Config["name"] = "changed"

		require.Equal(t, "big", tmpl.Body.Actions[0].Config["name"])
	})
}

func Test_Settlement_Apply(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Execution{ID: "e1", Status: ExecutionStatusRunning, StartedAt: started, TriggerData: json.RawMessage(`{}`)}

	settled := Settlement{
		Status:      ExecutionStatusFailed,
		Steps:       []Step{{Kind: "webhook", Status: StepStatusFailed, Error: "boom"}},
		CompletedAt: started.Add(2 * time.Second),
		Duration:    2 * time.Second,
		Error:       "boom",
	}.Apply(e)

	require.Equal(t, ExecutionStatusRunning, e.Status)
	require.Equal(t, ExecutionStatusFailed, settled.Status)
	require.Equal(t, 2*time.Second, *settled.Duration)
	require.Equal(t, started.Add(2*time.Second), *settled.CompletedAt)
	require.Equal(t, "boom", settled.Error)
	require.Len(t, settled.Steps, 1)
}

func Test_ExecutionStatus_Terminal(t *testing.T) {
	require.False(t, ExecutionStatusRunning.Terminal())
	require.True(t, ExecutionStatusCompleted.Terminal())
	require.True(t, ExecutionStatusFailed.Terminal())
}

func Test_ExecutionStatus_Scan(t *testing.T) {
	var s ExecutionStatus
	require.NoError(t, s.Scan("FAILED"))
	require.Equal(t, ExecutionStatusFailed, s)

	require.NoError(t, s.Scan([]byte("COMPLETED")))
	require.Equal(t, ExecutionStatusCompleted, s)

	require.Error(t, s.Scan(42))
}

func Test_TemplateFilter_Match(t *testing.T) {
	pub := &Template{Category: "sales", IsPublic: true}
	priv := &Template{Category: "ops"}

	require.True(t, TemplateFilter{}.Match(pub))
	require.True(t, TemplateFilter{}.Match(priv))
	require.True(t, TemplateFilter{Category: "sales"}.Match(pub))
	require.False(t, TemplateFilter{Category: "sales"}.Match(priv))
	require.False(t, TemplateFilter{PublicOnly: true}.Match(priv))
}
