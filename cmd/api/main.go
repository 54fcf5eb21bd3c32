// Package main is the entry point for the carewatch prediction API server.
//
// It loads configuration, builds the prediction engine over the artifact
// directory, optionally connects the readings store when DATABASE_URL is
// set, assembles the HTTP server with the core chassis (middleware,
// routing, health checks), and serves until a shutdown signal arrives.
//
// The model is warmed eagerly at startup; a missing or corrupt artifact
// set is logged but not fatal, because the API can still answer liveness
// checks and report 503 on prediction routes until artifacts appear and
// the process is restarted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carewatch/internal/api/handlers"
	"carewatch/internal/config"
	"carewatch/internal/core"
	"carewatch/internal/db"
	"carewatch/internal/engine"
	"carewatch/internal/readings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit
// on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("carewatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"model_dir", cfg.Model.Dir,
	)

	// Build the prediction engine over the artifact directory and warm it.
	// Predictions serialize behind EnsureReady on the first request anyway;
	// warming here just moves the load cost off the request path.
	eng := engine.NewEngine(engine.NewDirSource(cfg.Model.Dir), logger)
	if eng.EnsureReady() {
		logger.Info("model artifacts loaded", "dir", cfg.Model.Dir)
	} else {
		_, loadErr := eng.Status()
		logger.Warn("model artifacts not loaded; prediction routes will return 503",
			"dir", cfg.Model.Dir,
			"error", loadErr,
		)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Model = eng

	// The model probe surfaces the last load failure without triggering a
	// load; a healthy-but-unloaded engine that never attempted a load stays
	// healthy.
	srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("model", func(ctx context.Context) error {
		state, lastErr := eng.Status()
		if lastErr != nil {
			return fmt.Errorf("%s: %w", state, lastErr)
		}
		return nil
	}))

	predictionHandler := handlers.NewPredictionHandler(eng, srv.Validator, logger, nil)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, predictionHandler.RegisterRoutes)

	// The readings store is optional: without DATABASE_URL the service runs
	// inference-only and the history endpoints are not mounted.
	if cfg.Database.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := db.NewPool(ctx, cfg.Database)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		srv.RegisterCloser(pool.Close)

		store := db.NewReadingRepository(pool)
		svc := readings.NewService(eng, store, logger, nil)
		readingsHandler := handlers.NewReadingsHandler(svc, eng, logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, readingsHandler.RegisterRoutes)

		srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("database", pool.Ping))
		logger.Info("readings store enabled")
	} else {
		logger.Info("no database configured; running inference-only")
	}

	srv.MountRoutes()

	return serveHTTP(srv, cfg, logger)
}

// serveHTTP runs the HTTP listener with graceful shutdown on SIGINT/SIGTERM.
func serveHTTP(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
