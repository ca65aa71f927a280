package action

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// builtins holds the handler constructor for each action type.
var builtins = map[Type]func(c Collaborators) Handler{
	SendEmail:        sendEmail,
	SendNotification: sendNotification,
	CreateAlert:      createAlert,
	UpdateWidget:     updateWidget,
	Webhook:          webhook,
	SlackMessage:     slackMessage,
}

func init() {
	for _, t := range Types() {
		if builtins[t] == nil {
			panic(fmt.Sprintf("action type %q has no handler", t))
		}
	}
}

func sendEmail(c Collaborators) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		if c.Email == nil {
			return nil, fmt.Errorf("email sender: %w", ErrCollaboratorNotConfigured)
		}

		to, err := requireString(req.Config, "to")
		if err != nil {
			return nil, err
		}

		return c.Email.Send(ctx, Email{
			To:      to,
			Subject: optionalString(req.Config, "subject"),
			Body:    optionalString(req.Config, "body"),
		})
	}
}

func sendNotification(c Collaborators) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		if c.Notifications == nil {
			return nil, fmt.Errorf("notification sender: %w", ErrCollaboratorNotConfigured)
		}

		message, err := requireString(req.Config, "message")
		if err != nil {
			return nil, err
		}

		data, err := req.trigger()
		if err != nil {
			return nil, err
		}

		n := Notification{
			WorkspaceID: req.WorkspaceID,
			Title:       optionalString(req.Config, "title"),
			Message:     message,
			UserID:      optionalString(req.Config, "userId"),
		}
		if m, ok := data.(map[string]any); ok {
			n.Data = m
		}

		return c.Notifications.Send(ctx, n)
	}
}

func createAlert(c Collaborators) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		if c.Alerts == nil {
			return nil, fmt.Errorf("alert creator: %w", ErrCollaboratorNotConfigured)
		}

		name, err := requireString(req.Config, "name")
		if err != nil {
			return nil, err
		}

		return c.Alerts.Create(ctx, Alert{
			WorkspaceID: req.WorkspaceID,
			Name:        name,
			Config:      without(req.Config, "name"),
		})
	}
}

func updateWidget(c Collaborators) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		if c.Widgets == nil {
			return nil, fmt.Errorf("widget updater: %w", ErrCollaboratorNotConfigured)
		}

		widgetID, err := requireString(req.Config, "widgetId")
		if err != nil {
			return nil, err
		}

		changes := without(req.Config, "widgetId")
		if nested, ok := req.Config["changes"].(map[string]any); ok {
			changes = nested
		}

		return c.Widgets.Update(ctx, WidgetUpdate{
			WorkspaceID: req.WorkspaceID,
			WidgetID:    widgetID,
			Changes:     changes,
		})
	}
}

func slackMessage(c Collaborators) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		if c.Chat == nil {
			return nil, fmt.Errorf("chat poster: %w", ErrCollaboratorNotConfigured)
		}

		message, err := requireString(req.Config, "message")
		if err != nil {
			return nil, err
		}

		return c.Chat.Post(ctx, ChatMessage{
			Channel: optionalString(req.Config, "channel"),
			Message: message,
		})
	}
}

// DefaultHTTPClient returns the traced client used for webhooks when no
// HTTPDoer is configured.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func webhook(c Collaborators) Handler {
	doer := c.HTTP
	if doer == nil {
		doer = DefaultHTTPClient()
	}

	return func(ctx context.Context, req Request) (any, error) {
		url, err := requireString(req.Config, "url")
		if err != nil {
			return nil, err
		}

		method := strings.ToUpper(optionalString(req.Config, "method"))
		if method == "" {
			method = http.MethodPost
		}

		var body io.Reader
		if method != http.MethodGet && method != http.MethodHead && len(req.TriggerData) > 0 {
			body = bytes.NewReader(req.TriggerData)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("creating webhook request: %w", err)
		}

		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if s, ok := v.(string); ok {
					httpReq.Header.Set(k, s)
				}
			}
		}

		resp, err := doer.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("webhook request: %w", err)
		}
		defer resp.Body.Close()

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}

		return WebhookReceipt{Status: resp.StatusCode, OK: true}, nil
	}
}

func requireString(cfg map[string]any, key string) (string, error) {
	s, ok := cfg[key].(string)
	if !ok || s == "" {
		return "", &MissingConfigError{Key: key}
	}

	return s, nil
}

func optionalString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func without(cfg map[string]any, key string) map[string]any {
	if len(cfg) == 0 {
		return nil
	}

	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if k != key {
			out[k] = v
		}
	}

	return out
}
