package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// NewLogCollaborators returns collaborators that only log what they would
// have sent and acknowledge success. Webhooks still go out over HTTP.
func NewLogCollaborators(logger *slog.Logger) Collaborators {
	if logger == nil {
		logger = slog.Default()
	}

	return Collaborators{
		Email:         &logEmail{logger},
		Notifications: &logNotifier{logger},
		Alerts:        &logAlerts{logger},
		Widgets:       &logWidgets{logger},
		Chat:          &logChat{logger},
	}
}

type logEmail struct{ logger *slog.Logger }

func (l *logEmail) Send(ctx context.Context, email Email) (EmailReceipt, error) {
	l.logger.InfoContext(ctx, "Sending email", "to", email.To, "subject", email.Subject)
	return EmailReceipt{Sent: true}, nil
}

type logNotifier struct{ logger *slog.Logger }

func (l *logNotifier) Send(ctx context.Context, n Notification) (NotificationReceipt, error) {
	l.logger.InfoContext(ctx, "Sending notification", "workspace", n.WorkspaceID, "message", n.Message)
	return NotificationReceipt{Sent: true}, nil
}

type logAlerts struct{ logger *slog.Logger }

func (l *logAlerts) Create(ctx context.Context, alert Alert) (AlertReceipt, error) {
	id := uuid.NewString()
	l.logger.InfoContext(ctx, "Creating alert", "workspace", alert.WorkspaceID, "name", alert.Name, "id", id)
	return AlertReceipt{Created: true, ID: id}, nil
}

type logWidgets struct{ logger *slog.Logger }

func (l *logWidgets) Update(ctx context.Context, u WidgetUpdate) (WidgetReceipt, error) {
	l.logger.InfoContext(ctx, "Updating widget", "workspace", u.WorkspaceID, "widget", u.WidgetID)
	return WidgetReceipt{Updated: true}, nil
}

type logChat struct{ logger *slog.Logger }

func (l *logChat) Post(ctx context.Context, msg ChatMessage) (ChatReceipt, error) {
	l.logger.InfoContext(ctx, "Posting chat message", "channel", msg.Channel)
	return ChatReceipt{Sent: true}, nil
}

// SlackWebhookPoster posts chat messages to a Slack incoming webhook.
type SlackWebhookPoster struct {
	URL  string
	HTTP HTTPDoer
}

var _ ChatPoster = (*SlackWebhookPoster)(nil)

func (p *SlackWebhookPoster) Post(ctx context.Context, msg ChatMessage) (ChatReceipt, error) {
	payload := map[string]string{"text": msg.Message}
	if msg.Channel != "" {
		payload["channel"] = msg.Channel
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return ChatReceipt{}, fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(b))
	if err != nil {
		return ChatReceipt{}, fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	doer := p.HTTP
	if doer == nil {
		doer = DefaultHTTPClient()
	}

	resp, err := doer.Do(req)
	if err != nil {
		return ChatReceipt{}, fmt.Errorf("posting slack message: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return ChatReceipt{}, fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return ChatReceipt{Sent: true}, nil
}
