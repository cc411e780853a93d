package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micro-atlas/atlas/internal/analyzer"
	"github.com/micro-atlas/atlas/internal/api"
	"github.com/micro-atlas/atlas/internal/config"
	"github.com/micro-atlas/atlas/internal/events"
	"github.com/micro-atlas/atlas/internal/ingest"
	"github.com/micro-atlas/atlas/internal/llm"
	"github.com/micro-atlas/atlas/internal/pipeline"
	"github.com/micro-atlas/atlas/internal/recommender"
	"github.com/micro-atlas/atlas/internal/store"
	"github.com/micro-atlas/atlas/internal/store/postgres"
	"github.com/micro-atlas/atlas/internal/store/sqlite"
	"github.com/micro-atlas/atlas/internal/themes"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("atlas starting", "port", cfg.Port, "store", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backend, selected by configuration.
	var db store.Store
	switch cfg.StoreBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required for the postgres store")
			os.Exit(1)
		}
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		db = pg
	case "sqlite":
		sq, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			slog.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		db = sq
	default:
		slog.Error("unknown store backend", "store", cfg.StoreBackend)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("store ready", "backend", cfg.StoreBackend)

	// Model client.
	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	model := llm.NewClient(cfg.OpenAIAPIKey, cfg.Model, time.Duration(cfg.ModelTimeout)*time.Second)
	slog.Info("model client ready", "model", cfg.Model, "timeout_s", cfg.ModelTimeout)

	anl := analyzer.New(model, slog.Default())
	rec := recommender.New(model, slog.Default())
	profiles := themes.NewService(db, slog.Default())

	// Message bus.
	bus, err := events.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Pipeline: async analysis of ingested inputs.
	proc := pipeline.New(db, anl, bus, slog.Default())
	if err := bus.Subscribe(events.SubjectInputStored, proc.HandleInputStored); err != nil {
		slog.Error("failed to subscribe to input events", "error", err)
		os.Exit(1)
	}

	// HTTP: webhooks + API.
	webhooks := ingest.NewHandler(db, bus, cfg.DefaultUser, slog.Default())
	srv := api.NewServer(cfg.Port, cfg.APIToken, cfg.StoreBackend, db, proc, profiles, rec, webhooks)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if err := bus.Publish(events.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"store":     cfg.StoreBackend,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("atlas ready", "port", cfg.Port)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("atlas stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
