package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/memory"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/engine"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	s *Server
	e *engine.Engine
	b backend.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := memory.NewMemoryBackend()

	opts := []action.Option{}
	for _, typ := range action.Types() {
		opts = append(opts, action.WithHandler(typ, func(ctx context.Context, req action.Request) (any, error) {
			return map[string]any{"sent": true}, nil
		}))
	}
	opts = append(opts, action.WithHandler(action.Webhook, func(ctx context.Context, req action.Request) (any, error) {
		return nil, errors.New("webhook returned status 502")
	}))

	e := engine.New(b, action.NewRegistry(action.Collaborators{}, opts...))
	t.Cleanup(e.WaitForCompletion)

	return &fixture{
		s: NewServer(e, &Options{WaitTimeout: 5 * time.Second}),
		e: e,
		b: b,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.s.Handler().ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

const createBody = `{
	"name": "Large US orders",
	"trigger": {"type": "event", "event": "order.created"},
	"conditions": {"operator": "AND", "rules": [
		{"field": "amount", "operator": "greater_than", "value": 100},
		{"field": "region", "operator": "equals", "value": "US"}
	]},
	"actions": [{"type": "create_alert", "config": {"name": "Large order"}}],
	"nodes": [{"id": "n1"}],
	"edges": []
}`

func (f *fixture) createWorkflow(t *testing.T, body string) *workflow.Workflow {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/workflows", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return decode[*workflow.Workflow](t, rec)
}

func Test_Server_Healthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func Test_Server_WorkflowLifecycle(t *testing.T) {
	f := newFixture(t)

	wf := f.createWorkflow(t, createBody)
	require.Equal(t, "ws-1", wf.WorkspaceID)
	require.Equal(t, 1, wf.Version)
	require.True(t, wf.IsActive)
	require.NotNil(t, wf.Conditions)

	rec := f.do(t, http.MethodGet, "/api/v1/workspaces/ws-1/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*workflow.Workflow](t, rec), 1)

	rec = f.do(t, http.MethodPatch, "/api/v1/workflows/"+wf.ID, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[*workflow.Workflow](t, rec)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, 2, updated.Version)

	rec = f.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/toggle", `{"isActive":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode[*workflow.Workflow](t, rec)
	require.False(t, toggled.IsActive)
	require.Equal(t, 2, toggled.Version)

	rec = f.do(t, http.MethodDelete, "/api/v1/workflows/"+wf.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/workflows/"+wf.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_Server_Problems(t *testing.T) {
	f := newFixture(t)

	inactive := f.createWorkflow(t, `{"name":"Inactive","isActive":false,"actions":[]}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown workflow", http.MethodGet, "/api/v1/workflows/" + uuid.NewString(), "", http.StatusNotFound},
		{"unknown execution", http.MethodGet, "/api/v1/executions/" + uuid.NewString(), "", http.StatusNotFound},
		{"unknown template", http.MethodGet, "/api/v1/templates/" + uuid.NewString(), "", http.StatusNotFound},
		{"missing name", http.MethodPost, "/api/v1/workspaces/ws-1/workflows", `{"actions":[]}`, http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/api/v1/workspaces/ws-1/workflows", `{"name":"x","actions":[{"type":"fax"}]}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/workspaces/ws-1/workflows", `{"name":`, http.StatusBadRequest},
		{"mistyped field", http.MethodPost, "/api/v1/workspaces/ws-1/workflows", `{"name":1}`, http.StatusBadRequest},
		{"mistyped toggle", http.MethodPost, "/api/v1/workflows/" + inactive.ID + "/toggle", `{"isActive":"yes"}`, http.StatusBadRequest},
		{"inactive workflow", http.MethodPost, "/api/v1/workflows/" + inactive.ID + "/execute", `{}`, http.StatusConflict},
		{"invalid trigger data", http.MethodPost, "/api/v1/workflows/" + inactive.ID + "/execute", `{"amount":`, http.StatusBadRequest},
		{"invalid limit", http.MethodGet, "/api/v1/workflows/" + inactive.ID + "/executions?limit=x", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, problemContentType, rec.Header().Get("Content-Type"))

			p := decode[ProblemDetails](t, rec)
			require.Equal(t, tt.status, p.Status)
			require.Equal(t, http.StatusText(tt.status), p.Title)
			require.NotEmpty(t, p.Detail)
		})
	}
}

func Test_Server_UnsupportedContentType(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/ws-1/workflows", strings.NewReader(`name=x`))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	f.s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
	require.Equal(t, problemContentType, rec.Header().Get("Content-Type"))

	wfs, err := f.e.GetWorkflows(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Empty(t, wfs)
}

func Test_Server_Execute(t *testing.T) {
	f := newFixture(t)

	wf := f.createWorkflow(t, createBody)

	rec := f.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/execute", `{"amount":150,"region":"US"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	exec := decode[*workflow.Execution](t, rec)
	require.Equal(t, workflow.ExecutionStatusRunning, exec.Status)
	require.Equal(t, wf.ID, exec.WorkflowID)

	f.e.WaitForCompletion()

	rec = f.do(t, http.MethodGet, "/api/v1/executions/"+exec.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	settled := decode[*workflow.Execution](t, rec)
	require.Equal(t, workflow.ExecutionStatusCompleted, settled.Status)
	require.Len(t, settled.Steps, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/workflows/"+wf.ID+"/executions?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*workflow.Execution](t, rec), 1)
}

func Test_Server_ExecuteAndWait(t *testing.T) {
	f := newFixture(t)

	wf := f.createWorkflow(t, createBody)

	rec := f.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/execute?wait=true", `{"amount":50,"region":"US"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	exec := decode[*workflow.Execution](t, rec)
	require.Equal(t, workflow.ExecutionStatusCompleted, exec.Status)
	require.Equal(t, workflow.StepStatusNotMet, exec.Steps[0].Status)
}

func Test_Server_Retry(t *testing.T) {
	f := newFixture(t)

	wf := f.createWorkflow(t, `{"name":"Hook","actions":[{"type":"webhook","config":{"url":"https://example.com"}}]}`)

	rec := f.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/execute?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	failed := decode[*workflow.Execution](t, rec)
	require.Equal(t, workflow.ExecutionStatusFailed, failed.Status)
	require.Equal(t, "webhook returned status 502", failed.Error)

	rec = f.do(t, http.MethodPost, "/api/v1/executions/"+failed.ID+"/retry", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	retry := decode[*workflow.Execution](t, rec)
	require.NotEqual(t, failed.ID, retry.ID)
	require.Equal(t, failed.ID, retry.RetryOf)

	f.e.WaitForCompletion()

	completed := f.createWorkflow(t, `{"name":"Noop","actions":[]}`)
	rec = f.do(t, http.MethodPost, "/api/v1/workflows/"+completed.ID+"/execute?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[*workflow.Execution](t, rec)

	rec = f.do(t, http.MethodPost, "/api/v1/executions/"+done.ID+"/retry", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func Test_Server_Templates(t *testing.T) {
	f := newFixture(t)

	tmpl := &workflow.Template{
		ID:       uuid.NewString(),
		Name:     "Daily digest",
		Category: "reporting",
		IsPublic: true,
		Body: workflow.TemplateBody{
			Trigger: json.RawMessage(`{"type":"schedule"}`),
			Actions: []action.Descriptor{{Type: action.SendEmail, Config: map[string]any{"to": "team@example.com"}}},
		},
	}
	require.NoError(t, f.b.CreateTemplate(context.Background(), tmpl))

	rec := f.do(t, http.MethodGet, "/api/v1/templates?category=reporting", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*workflow.Template](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/templates?category=other", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/templates/"+tmpl.ID+"/instantiate", `{"workspaceId":"ws-9","overrides":{"name":"Mine"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wf := decode[*workflow.Workflow](t, rec)
	require.Equal(t, "Mine", wf.Name)
	require.Equal(t, "ws-9", wf.WorkspaceID)
	require.Equal(t, 1, wf.Version)

	rec = f.do(t, http.MethodGet, "/api/v1/templates/"+tmpl.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(1), decode[*workflow.Template](t, rec).UsageCount)
}
