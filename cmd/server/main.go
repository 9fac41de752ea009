package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"trivia/internal/ai"
	"trivia/internal/app"
	"trivia/internal/config"
	"trivia/internal/netcheck"
	"trivia/internal/storage/sqlite"
	httpTransport "trivia/internal/transport/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg, stdout)
	slog.SetDefault(logger)

	logger.Info("starting trivia server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"model", cfg.AI.Model,
	)

	// --- SQLite ---
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening game history: %w", err)
	}
	defer store.Close()
	logger.Info("connected to sqlite", "path", cfg.Storage.DBPath)

	// --- AI ---
	client := ai.NewClient(ai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, logger)
	if !client.IsAvailable() {
		logger.Warn("AI_API_KEY is not set; games cannot start until it is configured")
	}

	monitor := netcheck.NewMonitor(cfg.Netcheck.Addr, cfg.Netcheck.Interval, logger)

	// --- Tables ---
	hub := app.NewGameHub(app.Deps{
		Questions:    ai.NewGenerator(client),
		Grader:       ai.NewGrader(client),
		Connectivity: monitor,
		Recorder:     store,
		Settings:     cfg.GameSettings(),
	}, logger)
	defer hub.Close()

	// --- HTTP Server ---
	srv := httpTransport.NewServer(cfg, hub, store, map[string]httpTransport.Checker{
		"sqlite":  dbChecker{store},
		"network": onlineChecker{monitor},
	}, logger)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Logging.Level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// dbChecker adapts the history store to httpTransport.Checker.
type dbChecker struct{ store *sqlite.Store }

func (d dbChecker) Check(ctx context.Context) error { return d.store.Ping(ctx) }

// onlineChecker adapts the connectivity monitor to httpTransport.Checker.
type onlineChecker struct{ monitor *netcheck.Monitor }

func (o onlineChecker) Check(context.Context) error {
	if !o.monitor.Online() {
		return errors.New("network unreachable")
	}
	return nil
}
