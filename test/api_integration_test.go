//go:build integration

// Package test contains integration tests that exercise the full stack:
// synthetic dataset generation, model training, artifact persistence, and
// the HTTP API serving predictions from the trained artifacts. These tests
// are skipped by default during `go test ./...` and must be run explicitly
// with the integration build tag:
//
//	go test -v -tags integration ./test/
//
// No external services are required; everything runs against a temp
// directory. The database-backed readings endpoints are covered by unit
// tests with mocked stores, not here.
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carewatch/internal/api/handlers"
	"carewatch/internal/config"
	"carewatch/internal/core"
	"carewatch/internal/datagen"
	"carewatch/internal/engine"
	"carewatch/internal/training"
	"carewatch/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// trainTestModel generates a small labeled dataset and trains a decision
// tree into a temp artifact directory.
func trainTestModel(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	logger := discardLogger()

	gen := datagen.NewGenerator(logger, nil)
	readings, err := gen.Generate(context.Background(), datagen.Config{
		Samples: 900,
		Seed:    7,
		Devices: 2,
	})
	if err != nil {
		t.Fatalf("generating dataset: %v", err)
	}
	if err := datagen.WriteFiles(dir, readings, "patient-test"); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}

	modelDir := filepath.Join(dir, "models")
	trainer := training.NewTrainer(logger, nil)
	result, err := trainer.Run(context.Background(), training.Config{
		DataPath: filepath.Join(dir, datagen.CSVFileName),
		OutDir:   modelDir,
		Model:    types.ModelDecisionTree,
		Seed:     7,
		CVFolds:  3,
	})
	if err != nil {
		t.Fatalf("training model: %v", err)
	}
	if result.Metadata.Metrics.Accuracy < 0.6 {
		t.Fatalf("holdout accuracy = %v, model too weak for API assertions", result.Metadata.Metrics.Accuracy)
	}
	return modelDir
}

// buildServer wires the API the way cmd/api does, minus the database.
func buildServer(t *testing.T, modelDir string) *core.Server {
	t.Helper()

	logger := discardLogger()
	cfg := &config.Config{
		Environment: "local",
		Service:     "carewatch-api",
		Server:      config.ServerConfig{Port: "0"},
		Model:       config.ModelConfig{Dir: modelDir},
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	eng := engine.NewEngine(engine.NewDirSource(modelDir), logger)
	srv.Model = eng

	h := handlers.NewPredictionHandler(eng, srv.Validator, logger, nil)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, h.RegisterRoutes)
	srv.MountRoutes()
	return srv
}

func postJSON(t *testing.T, srv *core.Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTrainedModelServesAPI(t *testing.T) {
	modelDir := trainTestModel(t)
	srv := buildServer(t, modelDir)

	t.Run("health reports model loaded", func(t *testing.T) {
		// The first prediction call triggers the load; healthz never does.
		rec := postJSON(t, srv, "/v1/predict", `{"temperature":20,"motion_level":1,"sound_level":10,"hour_of_day":3,"is_night":1}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("warm-up predict: status %d, body %s", rec.Code, rec.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		var resp struct {
			Status      string `json:"status"`
			ModelLoaded bool   `json:"model_loaded"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding health body: %v", err)
		}
		if resp.Status != "healthy" || !resp.ModelLoaded {
			t.Errorf("health = %+v", resp)
		}
	})

	t.Run("model info serves training metadata", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/model/info", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", w.Code, w.Body.String())
		}
		var info types.ModelInfo
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if !info.ModelLoaded {
			t.Error("model_loaded = false")
		}
		if len(info.Features) != len(types.DefaultFeatureOrder) {
			t.Errorf("features = %v", info.Features)
		}
		if len(info.Classes) == 0 {
			t.Error("no classes in metadata")
		}
		if info.Metadata == nil || info.Metadata.ModelType != types.ModelDecisionTree {
			t.Errorf("metadata = %+v", info.Metadata)
		}
	})

	t.Run("predict classifies a quiet night as sleep-like", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/predict",
			`{"temperature":19.5,"motion_level":1,"sound_level":10,"hour_of_day":3,"is_night":1,"motion_trend":0}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
		}

		var pred types.Prediction
		if err := json.Unmarshal(rec.Body.Bytes(), &pred); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if pred.ActivityClass != types.ActivitySleeping && pred.ActivityClass != types.ActivityResting {
			t.Errorf("activity_class = %q for a quiet night reading", pred.ActivityClass)
		}
		if pred.Confidence <= 0 || pred.Confidence > 1 {
			t.Errorf("confidence = %v", pred.Confidence)
		}
		if got := pred.ConfidenceScores[pred.ActivityClass]; got != pred.Confidence {
			t.Errorf("confidence %v does not match distribution entry %v", pred.Confidence, got)
		}
	})

	t.Run("predict batch keeps input order", func(t *testing.T) {
		var rows []string
		for i := 0; i < 10; i++ {
			rows = append(rows, fmt.Sprintf(`{"temperature":%d,"motion_level":%d,"sound_level":%d,"hour_of_day":%d}`,
				18+i, i*10, i*80, (i*3)%24))
		}
		rec := postJSON(t, srv, "/v1/predict/batch", `{"readings":[`+strings.Join(rows, ",")+`]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Predictions []types.BatchPredictionItem `json:"predictions"`
			Count       int                         `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if resp.Count != 10 {
			t.Fatalf("count = %d", resp.Count)
		}
		for i, item := range resp.Predictions {
			if item.Index != i {
				t.Errorf("predictions[%d].Index = %d", i, item.Index)
			}
			if item.ActivityClass == "" {
				t.Errorf("predictions[%d] has empty class", i)
			}
		}
	})

	t.Run("classify returns display metadata", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/classify",
			`{"device_id":"room-3","temperature":22,"motion_level":55,"sound_level":420,"hour_of_day":11}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
		}

		var result types.ClassificationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if result.ActivityDisplay == "" || result.RiskColor == "" {
			t.Errorf("missing display metadata: %+v", result)
		}
		if result.RiskLevel != result.ActivityClass.Risk() {
			t.Errorf("risk_level = %q for class %q", result.RiskLevel, result.ActivityClass)
		}
		if time.Since(result.Timestamp) > time.Minute {
			t.Errorf("stale timestamp %v", result.Timestamp)
		}
	})

	t.Run("fhir classify extracts observation components", func(t *testing.T) {
		body := `{
			"resourceType": "Observation",
			"status": "final",
			"component": [
				{"code": {"coding": [{"system": "http://loinc.org", "code": "8310-5"}]},
				 "valueQuantity": {"value": 21.0, "unit": "Cel"}},
				{"code": {"coding": [{"system": "http://snomed.info/sct", "code": "52821000"}]},
				 "valueInteger": 3},
				{"code": {"coding": [{"system": "http://loinc.org", "code": "89020-2"}]},
				 "valueInteger": 25}
			]
		}`
		rec := postJSON(t, srv, "/v1/fhir/classify", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			types.ClassificationResult
			ExtractedFeatures types.FeatureMap `json:"extracted_features"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if resp.ExtractedFeatures[types.FeatureTemperature] != 21.0 {
			t.Errorf("extracted features = %v", resp.ExtractedFeatures)
		}
		if resp.ActivityClass == "" {
			t.Error("empty activity class")
		}
	})

	t.Run("retrain is not implemented", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/retrain", `{}`)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("status %d, want 501", rec.Code)
		}
	})

	t.Run("validation errors carry typed codes", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/classify",
			`{"temperature":99,"motion_level":2,"sound_level":30}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
		}
		var resp core.APIErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if resp.Error.Code != string(types.ErrCodeValidationInvalidTemperature) {
			t.Errorf("code = %q", resp.Error.Code)
		}
		if resp.Error.RequestID == "" {
			t.Error("missing request_id in error envelope")
		}
	})
}

func TestUnreadyServerReturns503(t *testing.T) {
	srv := buildServer(t, t.TempDir())

	rec := postJSON(t, srv, "/v1/predict", `{"temperature":20}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", rec.Code)
	}

	var resp core.APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeServiceModelNotReady) {
		t.Errorf("code = %q", resp.Error.Code)
	}
}
