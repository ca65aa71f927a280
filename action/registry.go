package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Registry maps action types to handlers. It is assembled once and is safe
// for concurrent use.
type Registry struct {
	handlers map[Type]Handler
	timeout  time.Duration
}

type Option func(*Registry)

// WithTimeout bounds every dispatch. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.timeout = timeout
	}
}

// WithHandler replaces the builtin handler of an existing action type.
func WithHandler(t Type, h Handler) Option {
	return func(r *Registry) {
		if _, ok := r.handlers[t]; ok {
			r.handlers[t] = h
		}
	}
}

func NewRegistry(c Collaborators, opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[Type]Handler, len(builtins)),
		timeout:  DefaultTimeout,
	}

	for t, newHandler := range builtins {
		r.handlers[t] = newHandler(c)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Has reports whether t has a handler.
func (r *Registry) Has(t Type) bool {
	_, ok := r.handlers[t]
	return ok
}

type outcome struct {
	result any
	err    error
}

// Dispatch runs the handler for d and returns its JSON encoded acknowledgement.
//
// Handler panics are returned as errors. When the configured timeout elapses
// before the handler returns, ErrActionTimeout is returned and the handler's
// eventual result is discarded.
func (r *Registry) Dispatch(ctx context.Context, d Descriptor, triggerData json.RawMessage, workspaceID string) (json.RawMessage, error) {
	h, ok := r.handlers[d.Type]
	if !ok {
		return nil, &UnknownTypeError{Type: d.Type}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := Request{
		Config:      d.Config,
		TriggerData: triggerData,
		WorkspaceID: workspaceID,
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("action panicked: %v", p)}
			}
		}()

		result, err := h(ctx, req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}

		if o.result == nil {
			return nil, nil
		}

		b, err := json.Marshal(o.result)
		if err != nil {
			return nil, fmt.Errorf("encoding action result: %w", err)
		}

		return b, nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrActionTimeout, r.timeout)
		}

		return nil, ctx.Err()
	}
}
