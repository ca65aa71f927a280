package action

import (
	"context"
	"net/http"
)

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type EmailReceipt struct {
	Sent bool `json:"sent"`
}

type EmailSender interface {
	Send(ctx context.Context, email Email) (EmailReceipt, error)
}

type Notification struct {
	WorkspaceID string         `json:"workspaceId"`
	Title       string         `json:"title,omitempty"`
	Message     string         `json:"message"`
	UserID      string         `json:"userId,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

type NotificationReceipt struct {
	Sent bool `json:"sent"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) (NotificationReceipt, error)
}

type Alert struct {
	WorkspaceID string         `json:"workspaceId"`
	Name        string         `json:"name"`
	Config      map[string]any `json:"config,omitempty"`
}

type AlertReceipt struct {
	Created bool   `json:"created"`
	ID      string `json:"id,omitempty"`
}

type AlertCreator interface {
	Create(ctx context.Context, alert Alert) (AlertReceipt, error)
}

type WidgetUpdate struct {
	WorkspaceID string         `json:"workspaceId"`
	WidgetID    string         `json:"widgetId"`
	Changes     map[string]any `json:"changes,omitempty"`
}

type WidgetReceipt struct {
	Updated bool `json:"updated"`
}

type WidgetUpdater interface {
	Update(ctx context.Context, update WidgetUpdate) (WidgetReceipt, error)
}

type ChatMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type ChatReceipt struct {
	Sent bool `json:"sent"`
}

type ChatPoster interface {
	Post(ctx context.Context, msg ChatMessage) (ChatReceipt, error)
}

// HTTPDoer performs outbound webhook calls. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookReceipt is the result of a successful webhook call.
type WebhookReceipt struct {
	Status int  `json:"status"`
	OK     bool `json:"ok"`
}

// Collaborators groups the external systems actions delegate to. A nil
// collaborator makes its actions fail with ErrCollaboratorNotConfigured.
type Collaborators struct {
	Email         EmailSender
	Notifications Notifier
	Alerts        AlertCreator
	Widgets       WidgetUpdater
	Chat          ChatPoster

	// HTTP is used for webhook actions. If nil, a traced default client is used.
	HTTP HTTPDoer
}
