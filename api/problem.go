package api

import (
	"errors"
	"net/http"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/engine"
	"github.com/labstack/echo/v4"
)

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

const problemContentType = "application/problem+json"

func statusFor(err error) int {
	var he *echo.HTTPError

	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidState), errors.Is(err, backend.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidWorkflow), errors.Is(err, engine.ErrInvalidTriggerData):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)

	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request().Context(), "request failed", "error", err, "path", c.Path())
		detail = http.StatusText(status)
	}

	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}

	c.Response().Header().Set(echo.HeaderContentType, problemContentType)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}

	if err := c.JSON(status, problem); err != nil {
		s.logger.ErrorContext(c.Request().Context(), "writing problem response", "error", err)
	}
}
