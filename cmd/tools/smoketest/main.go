// Package main implements the smoketest CLI tool for exercising a running
// CareWatch API instance end to end.
//
// Usage:
//
//	go run ./cmd/tools/smoketest \
//	  --base-url=http://localhost:8080 \
//	  --batch-size=5 --device-id=smoke-1
//
// Environment variables (used as defaults when flags are not set):
//
//	CAREWATCH_URL - base URL of the service
//
// The tool checks liveness, fetches model info, and runs a single predict,
// a batch predict, and a classify call with representative sensor values.
// With --readings it also ingests one reading and lists recent history,
// which requires the service to run with a database. A non-zero exit means
// at least one check failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carewatch/internal/client"
	"carewatch/internal/types"
)

func main() {
	baseURL := flag.String("base-url", envOr("CAREWATCH_URL", "http://localhost:8080"), "base URL of the CareWatch API (or CAREWATCH_URL env)")
	batchSize := flag.Int("batch-size", 5, "number of readings in the batch predict check")
	deviceID := flag.String("device-id", "smoketest", "device ID used for classify and readings checks")
	readings := flag.Bool("readings", false, "also exercise the readings endpoints (requires a database-backed deployment)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for the smoke test")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(client.Config{BaseURL: *baseURL, Logger: logger})

	failed := 0
	check := func(name string, fn func() error) {
		start := time.Now()
		if err := fn(); err != nil {
			logger.Error("check failed", "check", name, "error", err)
			failed++
			return
		}
		logger.Info("check passed", "check", name, "elapsed", time.Since(start).Round(time.Millisecond))
	}

	check("health", func() error {
		status, err := api.Health(ctx)
		if err != nil {
			return err
		}
		if status.Status != "healthy" {
			return fmt.Errorf("service reports %q (model_loaded=%v)", status.Status, status.ModelLoaded)
		}
		return nil
	})

	check("model info", func() error {
		info, err := api.ModelInfo(ctx)
		if err != nil {
			return err
		}
		if !info.ModelLoaded {
			return fmt.Errorf("model not loaded")
		}
		logger.Info("model info",
			"classes", len(info.Classes),
			"features", len(info.Features),
		)
		return nil
	})

	// A quiet night-time reading; any confident class is a pass.
	nightFeatures := types.FeatureMap{
		types.FeatureTemperature: 19.5,
		types.FeatureMotionLevel: 1,
		types.FeatureSoundLevel:  12,
		types.FeatureHourOfDay:   3,
		types.FeatureIsNight:     1,
	}

	check("predict", func() error {
		pred, err := api.Predict(ctx, nightFeatures)
		if err != nil {
			return err
		}
		if pred.ActivityClass == "" {
			return fmt.Errorf("empty activity class")
		}
		logger.Info("prediction",
			"activity_class", string(pred.ActivityClass),
			"confidence", pred.Confidence,
		)
		return nil
	})

	check("predict batch", func() error {
		batch := make([]types.FeatureMap, *batchSize)
		for i := range batch {
			batch[i] = types.FeatureMap{
				types.FeatureTemperature: 20 + float64(i),
				types.FeatureMotionLevel: float64(i * 20),
				types.FeatureSoundLevel:  float64(i * 100),
				types.FeatureHourOfDay:   float64((8 + i) % 24),
			}
		}
		result, err := api.PredictBatch(ctx, batch)
		if err != nil {
			return err
		}
		if result.Count != *batchSize {
			return fmt.Errorf("count = %d, want %d", result.Count, *batchSize)
		}
		for i, item := range result.Predictions {
			if item.Index != i {
				return fmt.Errorf("predictions[%d] has index %d", i, item.Index)
			}
		}
		return nil
	})

	check("classify", func() error {
		result, err := api.Classify(ctx, &types.ClassifyRequest{
			DeviceID:    *deviceID,
			Temperature: 22.0,
			MotionLevel: 45,
			SoundLevel:  300,
		})
		if err != nil {
			return err
		}
		if result.ActivityDisplay == "" || result.RiskColor == "" {
			return fmt.Errorf("missing display metadata: %+v", result)
		}
		logger.Info("classification",
			"activity", result.ActivityDisplay,
			"risk", string(result.RiskLevel),
		)
		return nil
	})

	if *readings {
		check("ingest reading", func() error {
			result, err := api.IngestReading(ctx, &types.ClassifyRequest{
				DeviceID:    *deviceID,
				Temperature: 21.0,
				MotionLevel: 5,
				SoundLevel:  40,
			})
			if err != nil {
				return err
			}
			logger.Info("reading stored", "activity", result.ActivityDisplay)
			return nil
		})
	}

	if failed > 0 {
		logger.Error("smoke test failed", "failed_checks", failed)
		os.Exit(1)
	}
	logger.Info("smoke test passed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
