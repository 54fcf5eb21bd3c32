package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"carewatch/internal/api/handlers"
	"carewatch/internal/config"
	"carewatch/internal/core"
	"carewatch/internal/engine"
)

// buildTestServer wires a server the way run() does, pointing the engine
// at an empty artifact directory so the model stays unloaded.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	eng := engine.NewEngine(engine.NewDirSource(cfg.Model.Dir), logger)
	srv.Model = eng

	h := handlers.NewPredictionHandler(eng, srv.Validator, logger, nil)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, h.RegisterRoutes)

	srv.MountRoutes()
	return srv
}

// TestHealthEndpoint verifies the wired server answers liveness checks even
// with no model artifacts present.
func TestHealthEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz: status %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if status, ok := resp["status"]; !ok || status != "healthy" {
		t.Errorf("status = %v, want healthy", status)
	}
	if loaded, ok := resp["model_loaded"].(bool); !ok || loaded {
		t.Errorf("model_loaded = %v, want false with empty artifact dir", resp["model_loaded"])
	}
}

// TestPredictionRoutesUnavailableWithoutModel verifies the prediction
// surface degrades to 503 rather than failing startup when artifacts are
// missing.
func TestPredictionRoutesUnavailableWithoutModel(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/model/info", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /v1/model/info: status %d, want 503; body: %s", rec.Code, rec.Body.String())
	}
}

// TestReadingsRoutesNotMountedWithoutDatabase verifies the history surface
// is absent in inference-only mode.
func TestReadingsRoutesNotMountedWithoutDatabase(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/readings/recent?device_id=d", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/readings/recent: status %d, want 404 without a database", rec.Code)
	}
}

// TestNewLogger verifies the logger factory handles every configured level.
func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		t.Run(level, func(t *testing.T) {
			if newLogger(level) == nil {
				t.Fatalf("newLogger(%q) returned nil", level)
			}
		})
	}
}

// setTestEnv sets the minimal environment required by config.LoadConfig,
// with the model directory pointed at an empty temp dir.
func setTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "8080")
	t.Setenv("MODEL_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "")
}
