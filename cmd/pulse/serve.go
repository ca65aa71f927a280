package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	mcpadapter "github.com/Faizanmal/Real-Time-Pulse-sub010/adapter/mcp"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/api"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/engine"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the MCP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, flags, seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "seed the builtin template catalog on startup")

	return cmd
}

func serve(ctx context.Context, flags *rootFlags, seed bool) error {
	cfg, logger, err := flags.load()
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Shutting down tracing", "error", err)
		}
	}()

	b, err := openBackend(cfg, true, backend.WithLogger(logger), backend.WithTracerProvider(tp))
	if err != nil {
		return err
	}
	defer b.Close()

	if seed {
		if err := seedCatalog(ctx, b, ""); err != nil {
			return err
		}
	}

	collaborators := action.NewLogCollaborators(logger)
	if cfg.Slack.WebhookURL != "" {
		collaborators.Chat = &action.SlackWebhookPoster{URL: cfg.Slack.WebhookURL}
	}

	registry := action.NewRegistry(collaborators, action.WithTimeout(cfg.Engine.ActionTimeout))

	e := engine.New(b, registry,
		engine.WithLogger(logger),
		engine.WithMaxParallelRuns(cfg.Engine.MaxParallelRuns),
		engine.WithTemplateCacheTTL(cfg.Engine.TemplateCacheTTL),
		engine.WithWaitTimeout(cfg.Server.WaitTimeout),
	)

	// Let running executions settle before the store goes away
	defer e.WaitForCompletion()

	apiServer := api.NewServer(e, &api.Options{
		Logger:         logger,
		TracerProvider: tp,
		WaitTimeout:    cfg.Server.WaitTimeout,
	})
	apiServer.Mount("/mcp/", mcpadapter.NewServer(e).Handler("/mcp"))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "backend", cfg.Backend.Type)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}

	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
	}

	logger.Info("Server stopped gracefully")

	return nil
}
