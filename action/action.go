// Package action dispatches workflow action descriptors to side-effecting
// collaborators.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Type selects the handler for an action.
type Type string

const (
	SendEmail        Type = "send_email"
	SendNotification Type = "send_notification"
	CreateAlert      Type = "create_alert"
	UpdateWidget     Type = "update_widget"
	Webhook          Type = "webhook"
	SlackMessage     Type = "slack_message"
)

// Types returns every action type with a builtin handler.
func Types() []Type {
	return []Type{SendEmail, SendNotification, CreateAlert, UpdateWidget, Webhook, SlackMessage}
}

// Descriptor is one entry of a workflow's ordered action list.
type Descriptor struct {
	Type   Type           `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Request is what a handler receives for a single dispatch.
type Request struct {
	Config      map[string]any
	TriggerData json.RawMessage
	WorkspaceID string
}

// trigger decodes the trigger payload. Each call returns a fresh value so
// handlers cannot affect each other through it.
func (r Request) trigger() (any, error) {
	if len(r.TriggerData) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(r.TriggerData, &v); err != nil {
		return nil, fmt.Errorf("decoding trigger data: %w", err)
	}

	return v, nil
}

// Handler performs one action and returns the collaborator's acknowledgement.
type Handler func(ctx context.Context, req Request) (any, error)

var (
	ErrCollaboratorNotConfigured = errors.New("collaborator not configured")
	ErrActionTimeout             = errors.New("action timed out")
)

// UnknownTypeError is returned when no handler is registered for a type.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown action type %q", e.Type)
}

// MissingConfigError reports a required config key that is absent or has the
// wrong type.
type MissingConfigError struct {
	Key string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing or invalid config %q", e.Key)
}
