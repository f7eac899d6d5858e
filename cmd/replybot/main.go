// Command replybot answers WhatsApp messages with the fine-tuned model.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/doppel/internal/api"
	"github.com/MikeSquared-Agency/doppel/internal/config"
	"github.com/MikeSquared-Agency/doppel/internal/gemini"
	"github.com/MikeSquared-Agency/doppel/internal/hermes"
	"github.com/MikeSquared-Agency/doppel/internal/history"
	"github.com/MikeSquared-Agency/doppel/internal/logging"
	"github.com/MikeSquared-Agency/doppel/internal/observability"
	"github.com/MikeSquared-Agency/doppel/internal/reply"
	"github.com/MikeSquared-Agency/doppel/internal/whatsapp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()

	closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := cfg.ValidateReply(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("replybot starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vertex AI
	model, err := gemini.NewVertexClient(ctx, cfg.ProjectID, cfg.Location, cfg.ModelID)
	if err != nil {
		slog.Error("failed to create vertex client", "error", err)
		os.Exit(1)
	}
	slog.Info("vertex client ready", "project", cfg.ProjectID, "location", cfg.Location, "endpoint", cfg.ModelID)

	// Metrics
	metrics := observability.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	// WhatsApp
	waURL := cfg.WhatsAppURL
	if waURL == "" {
		waURL = whatsapp.DefaultURL(cfg.PhoneNumberID)
	}
	messenger := whatsapp.NewClient(waURL, cfg.WhatsAppToken, slog.Default())

	svc := reply.NewService(model, history.New(cfg.MaxHistoryLength), cfg.YourName, cfg.BotPersona, slog.Default()).
		WithMetrics(metrics)

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		h, err := hermes.NewClient(connectCtx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		connectCancel()
		if err != nil {
			slog.Warn("nats unavailable, running without events", "error", err)
		} else {
			defer h.Close()
			svc.WithEvents(h)
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:           cfg.Port,
		VerifyToken:    cfg.VerifyToken,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics,
		MetricsHandler: observability.MetricsHandler(prometheus.DefaultGatherer),
	}, svc, messenger, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("replybot ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("replybot stopped")
}
