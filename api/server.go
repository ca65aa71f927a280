// Package api serves the engine operations over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/engine"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "pulse-workflows"

type Server struct {
	engine      *engine.Engine
	echo        *echo.Echo
	logger      *slog.Logger
	waitTimeout time.Duration
}

type Options struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider

	// WaitTimeout bounds how long execute and retry block when called with
	// ?wait=true.
	WaitTimeout time.Duration
}

func NewServer(e *engine.Engine, options *Options) *Server {
	if options == nil {
		options = &Options{}
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := options.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	s := &Server{
		engine:      e,
		echo:        echo.New(),
		logger:      logger,
		waitTimeout: options.WaitTimeout,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(otelecho.Middleware(serviceName, otelecho.WithTracerProvider(tp)))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}

			logger.DebugContext(c.Request().Context(), "request", attrs...)

			return nil
		},
	}))

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := s.echo.Group("/api/v1")

	v1.GET("/workspaces/:workspaceID/workflows", s.listWorkflows)
	v1.POST("/workspaces/:workspaceID/workflows", s.createWorkflow)

	v1.GET("/workflows/:id", s.getWorkflow)
	v1.PATCH("/workflows/:id", s.updateWorkflow)
	v1.DELETE("/workflows/:id", s.deleteWorkflow)
	v1.POST("/workflows/:id/toggle", s.toggleWorkflow)
	v1.POST("/workflows/:id/execute", s.executeWorkflow)
	v1.GET("/workflows/:id/executions", s.listExecutions)

	v1.GET("/executions/:id", s.getExecution)
	v1.POST("/executions/:id/retry", s.retryExecution)

	v1.GET("/templates", s.listTemplates)
	v1.GET("/templates/:id", s.getTemplate)
	v1.POST("/templates/:id/instantiate", s.instantiateTemplate)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Mount serves h below prefix, for example an MCP endpoint.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.echo.Any(prefix+"*", echo.WrapHandler(h))
}
