package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleyworks/parley/internal/advisory"
	"github.com/parleyworks/parley/internal/anthropic"
	"github.com/parleyworks/parley/internal/api"
	"github.com/parleyworks/parley/internal/config"
	"github.com/parleyworks/parley/internal/livechannel"
	"github.com/parleyworks/parley/internal/report"
	"github.com/parleyworks/parley/internal/scenario"
	"github.com/parleyworks/parley/internal/session"
	"github.com/parleyworks/parley/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("parley starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional report persistence.
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — reports will not be persisted")
	}

	lib := scenario.NewLibrary()

	// Missing credentials never crash the pipeline: the live channel is
	// simply not initialized and the session runs offline-only.
	var (
		advisor *advisory.Client
		prober  *advisory.Prober
		gen     *report.Generator
	)
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.ReasoningEffort)
		breaker := advisory.NewBreaker(cfg.RetryAttempts, cfg.BreakerCooldown)
		advisor = advisory.New(llm, breaker, cfg.RetryAttempts, cfg.BackoffUnit, slog.Default())
		prober = advisory.NewProber(advisor, cfg.ProbeInterval, slog.Default())
		prober.Start(ctx)
		defer prober.Stop()
		gen = report.NewGenerator(advisor, slog.Default())
		slog.Info("advisory client ready", "model", cfg.AnthropicModel, "attempts", cfg.RetryAttempts)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — running in offline-only mode")
	}

	// Live channel over NATS; optional like the reasoning endpoint.
	var live *livechannel.Client
	if cfg.NatsURL != "" {
		var err error
		live, err = livechannel.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("live channel unavailable", "error", err)
			live = nil
		}
	}

	var ctrlOpts []session.Option
	if live != nil {
		ctrlOpts = append(ctrlOpts, session.WithNotifier(live))
	}
	ctrl := session.NewController(responderOrNil(advisor), lib, cfg.WindowCapacity, cfg.OfflineLatency, slog.Default(), ctrlOpts...)
	queue := session.NewIngestQueue(ctrl, 0, slog.Default())
	go queue.Run(ctx)

	if live != nil {
		defer live.Close()
		if err := live.Subscribe(queue); err != nil {
			slog.Error("live channel subscribe failed", "error", err)
			os.Exit(1)
		}
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		Controller: ctrl,
		Library:    lib,
		Generator:  gen,
		Advisory:   advisor,
		Prober:     prober,
		Store:      db,
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("parley ready", "port", cfg.Port, "offline_only", advisor == nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("parley stopped")
}

// responderOrNil avoids handing the controller a typed-nil interface.
func responderOrNil(c *advisory.Client) session.Responder {
	if c == nil {
		return nil
	}
	return c
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
