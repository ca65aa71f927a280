package action

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmail struct{ sent []Email }

func (f *fakeEmail) Send(_ context.Context, e Email) (EmailReceipt, error) {
	f.sent = append(f.sent, e)
	return EmailReceipt{Sent: true}, nil
}

type fakeNotifier struct{ sent []Notification }

func (f *fakeNotifier) Send(_ context.Context, n Notification) (NotificationReceipt, error) {
	f.sent = append(f.sent, n)
	return NotificationReceipt{Sent: true}, nil
}

type fakeAlerts struct{ created []Alert }

func (f *fakeAlerts) Create(_ context.Context, a Alert) (AlertReceipt, error) {
	f.created = append(f.created, a)
	return AlertReceipt{Created: true, ID: "alert-1"}, nil
}

type fakeWidgets struct{ updates []WidgetUpdate }

func (f *fakeWidgets) Update(_ context.Context, u WidgetUpdate) (WidgetReceipt, error) {
	f.updates = append(f.updates, u)
	return WidgetReceipt{Updated: true}, nil
}

type fakeChat struct{ posted []ChatMessage }

func (f *fakeChat) Post(_ context.Context, m ChatMessage) (ChatReceipt, error) {
	f.posted = append(f.posted, m)
	return ChatReceipt{Sent: true}, nil
}

func Test_Handlers_DelegateToCollaborators(t *testing.T) {
	email := &fakeEmail{}
	notifier := &fakeNotifier{}
	alerts := &fakeAlerts{}
	widgets := &fakeWidgets{}
	chat := &fakeChat{}

	r := NewRegistry(Collaborators{
		Email:         email,
		Notifications: notifier,
		Alerts:        alerts,
		Widgets:       widgets,
		Chat:          chat,
	})

	trigger := json.RawMessage(`{"amount":150}`)
	ctx := context.Background()

	tests := []struct {
		name   string
		d      Descriptor
		result string
		check  func(t *testing.T)
	}{
		{
			name:   "send_email",
			d:      Descriptor{Type: SendEmail, Config: map[string]any{"to": "ops@example.com", "subject": "Hi", "body": "Body"}},
			result: `{"sent":true}`,
			check: func(t *testing.T) {
				require.Equal(t, []Email{{To: "ops@example.com", Subject: "Hi", Body: "Body"}}, email.sent)
			},
		},
		{
			name:   "send_notification",
			d:      Descriptor{Type: SendNotification, Config: map[string]any{"message": "Big sale", "title": "Sale"}},
			result: `{"sent":true}`,
			check: func(t *testing.T) {
				require.Len(t, notifier.sent, 1)
				require.Equal(t, "ws-1", notifier.sent[0].WorkspaceID)
				require.Equal(t, "Big sale", notifier.sent[0].Message)
				require.Equal(t, "Sale", notifier.sent[0].Title)
				require.Equal(t, map[string]any{"amount": float64(150)}, notifier.sent[0].Data)
			},
		},
		{
			name:   "create_alert",
			d:      Descriptor{Type: CreateAlert, Config: map[string]any{"name": "High amount", "threshold": 100}},
			result: `{"created":true,"id":"alert-1"}`,
			check: func(t *testing.T) {
				require.Equal(t, []Alert{{WorkspaceID: "ws-1", Name: "High amount", Config: map[string]any{"threshold": 100}}}, alerts.created)
			},
		},
		{
			name:   "update_widget",
			d:      Descriptor{Type: UpdateWidget, Config: map[string]any{"widgetId": "w-1", "changes": map[string]any{"color": "red"}}},
			result: `{"updated":true}`,
			check: func(t *testing.T) {
				require.Equal(t, []WidgetUpdate{{WorkspaceID: "ws-1", WidgetID: "w-1", Changes: map[string]any{"color": "red"}}}, widgets.updates)
			},
		},
		{
			name:   "slack_message",
			d:      Descriptor{Type: SlackMessage, Config: map[string]any{"channel": "#ops", "message": "hello"}},
			result: `{"sent":true}`,
			check: func(t *testing.T) {
				require.Equal(t, []ChatMessage{{Channel: "#ops", Message: "hello"}}, chat.posted)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Dispatch(ctx, tt.d, trigger, "ws-1")
			require.NoError(t, err)
			require.JSONEq(t, tt.result, string(result))
			tt.check(t)
		})
	}
}

func Test_Handlers_UpdateWidget_FlatChanges(t *testing.T) {
	widgets := &fakeWidgets{}
	r := NewRegistry(Collaborators{Widgets: widgets})

	_, err := r.Dispatch(context.Background(), Descriptor{Type: UpdateWidget, Config: map[string]any{"widgetId": "w-1", "title": "New"}}, nil, "ws")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "New"}, widgets.updates[0].Changes)
}

func Test_Handlers_MissingConfig(t *testing.T) {
	r := NewRegistry(Collaborators{
		Email:         &fakeEmail{},
		Notifications: &fakeNotifier{},
		Alerts:        &fakeAlerts{},
		Widgets:       &fakeWidgets{},
		Chat:          &fakeChat{},
	})

	tests := []struct {
		typ Type
		key string
	}{
		{SendEmail, "to"},
		{SendNotification, "message"},
		{CreateAlert, "name"},
		{UpdateWidget, "widgetId"},
		{Webhook, "url"},
		{SlackMessage, "message"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), Descriptor{Type: tt.typ, Config: map[string]any{}}, nil, "ws")

			var mce *MissingConfigError
			require.ErrorAs(t, err, &mce)
			require.Equal(t, tt.key, mce.Key)
		})
	}
}

type recordedRequest struct {
	method string
	header http.Header
	body   string
}

func newWebhookServer(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)

		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, header: r.Header.Clone(), body: string(b)})
		mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()

		return append([]recordedRequest(nil), reqs...)
	}
}

func Test_Webhook_DefaultsToPost(t *testing.T) {
	srv, reqs := newWebhookServer(t, http.StatusOK)
	r := NewRegistry(Collaborators{HTTP: srv.Client()})

	result, err := r.Dispatch(context.Background(), Descriptor{
		Type: Webhook,
		Config: map[string]any{
			"url":     srv.URL,
			"headers": map[string]any{"X-Token": "secret"},
		},
	}, json.RawMessage(`{"amount":150,"region":"US"}`), "ws")
	require.NoError(t, err)
	require.JSONEq(t, `{"status":200,"ok":true}`, string(result))

	require.Len(t, reqs(), 1)
	got := reqs()[0]
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "secret", got.header.Get("X-Token"))
	require.Equal(t, "application/json", got.header.Get("Content-Type"))
	require.JSONEq(t, `{"amount":150,"region":"US"}`, got.body)
}

func Test_Webhook_Method(t *testing.T) {
	srv, reqs := newWebhookServer(t, http.StatusNoContent)
	r := NewRegistry(Collaborators{HTTP: srv.Client()})

	_, err := r.Dispatch(context.Background(), Descriptor{
		Type:   Webhook,
		Config: map[string]any{"url": srv.URL, "method": "put"},
	}, json.RawMessage(`{"a":1}`), "ws")
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, reqs()[0].method)
	require.JSONEq(t, `{"a":1}`, reqs()[0].body)

	_, err = r.Dispatch(context.Background(), Descriptor{
		Type:   Webhook,
		Config: map[string]any{"url": srv.URL, "method": "GET"},
	}, json.RawMessage(`{"a":1}`), "ws")
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, reqs()[1].method)
	require.Empty(t, reqs()[1].body)
}

func Test_Webhook_NonSuccessStatusFails(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusBadGateway)
	r := NewRegistry(Collaborators{HTTP: srv.Client()})

	_, err := r.Dispatch(context.Background(), Descriptor{
		Type:   Webhook,
		Config: map[string]any{"url": srv.URL},
	}, nil, "ws")
	require.EqualError(t, err, "webhook returned status 502")
}

func Test_Webhook_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewRegistry(Collaborators{HTTP: &http.Client{}})

	_, err := r.Dispatch(context.Background(), Descriptor{
		Type:   Webhook,
		Config: map[string]any{"url": url},
	}, nil, "ws")
	require.Error(t, err)
	require.Contains(t, err.Error(), "webhook request")
}

func Test_SlackWebhookPoster(t *testing.T) {
	srv, reqs := newWebhookServer(t, http.StatusOK)
	p := &SlackWebhookPoster{URL: srv.URL, HTTP: srv.Client()}

	receipt, err := p.Post(context.Background(), ChatMessage{Channel: "#ops", Message: "deploy done"})
	require.NoError(t, err)
	require.True(t, receipt.Sent)
	require.JSONEq(t, `{"channel":"#ops","text":"deploy done"}`, reqs()[0].body)
}

func Test_SlackWebhookPoster_Error(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusForbidden)
	p := &SlackWebhookPoster{URL: srv.URL, HTTP: srv.Client()}

	_, err := p.Post(context.Background(), ChatMessage{Message: "x"})
	require.EqualError(t, err, "slack returned status 403")
}

func Test_LogCollaborators(t *testing.T) {
	r := NewRegistry(NewLogCollaborators(slog.New(slog.NewTextHandler(io.Discard, nil))))

	for _, d := range []Descriptor{
		{Type: SendEmail, Config: map[string]any{"to": "a@b.c"}},
		{Type: SendNotification, Config: map[string]any{"message": "m"}},
		{Type: CreateAlert, Config: map[string]any{"name": "n"}},
		{Type: UpdateWidget, Config: map[string]any{"widgetId": "w"}},
		{Type: SlackMessage, Config: map[string]any{"message": "m"}},
	} {
		t.Run(string(d.Type), func(t *testing.T) {
			result, err := r.Dispatch(context.Background(), d, nil, "ws")
			require.NoError(t, err)
			require.NotEmpty(t, result)
		})
	}
}
