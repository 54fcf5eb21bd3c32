// Package handlers contains the HTTP handler implementations for the
// CareWatch API. Handlers decode and validate requests, delegate to the
// prediction engine or the readings service, and map errors to the typed
// error codes the response writer understands.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carewatch/internal/core"
	"carewatch/internal/engine"
	"carewatch/internal/fhir"
	"carewatch/internal/types"
)

// PredictionEngine defines the engine contract for the prediction handler.
// Matches *engine.Engine but is defined locally to keep the handler wired
// through injection.
type PredictionEngine interface {
	EnsureReady() bool
	Predict(features types.FeatureMap) (*types.Prediction, error)
	PredictBatch(readings []types.FeatureMap) ([]types.BatchPredictionItem, error)
	Info() *types.ModelInfo
}

// BatchPredictRequest is the envelope for POST /v1/predict/batch. Each
// reading is a permissive feature map; unknown keys are ignored and
// missing schema features default to zero.
type BatchPredictRequest struct {
	Readings []types.FeatureMap `json:"readings" validate:"required,min=1,max=100"`
}

// BatchPredictResponse carries per-row results in input order.
type BatchPredictResponse struct {
	Predictions []types.BatchPredictionItem `json:"predictions"`
	Count       int                         `json:"count"`
}

// FHIRClassifyResponse is the classification result for an Observation,
// including the features extracted from it so callers can audit the mapping.
type FHIRClassifyResponse struct {
	types.ClassificationResult
	ExtractedFeatures types.FeatureMap `json:"extracted_features"`
}

// PredictionHandler maps HTTP requests to prediction engine calls.
type PredictionHandler struct {
	engine    PredictionEngine
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
}

// NewPredictionHandler creates a new PredictionHandler with the provided
// dependencies.
func NewPredictionHandler(
	eng PredictionEngine,
	val *core.Validator,
	logger *slog.Logger,
	clock types.Clock,
) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PredictionHandler{
		engine:    eng,
		validator: val,
		logger:    logger,
		clock:     clock,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the v1 mux.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/model/info", h.HandleModelInfo)
	r.Post("/predict", h.HandlePredict)
	r.Post("/predict/batch", h.HandlePredictBatch)
	r.Post("/classify", h.HandleClassify)
	r.Post("/retrain", h.HandleRetrain)
	r.Post("/fhir/classify", h.HandleFHIRClassify)
}

// ensureReady triggers a synchronous artifact load if none has happened yet
// and rejects the request with 503 when the model still is not servable.
// Every prediction route runs this before touching the request body.
func (h *PredictionHandler) ensureReady(w http.ResponseWriter, r *http.Request) bool {
	if h.engine.EnsureReady() {
		return true
	}
	core.Error(w, r, types.NewAppError(
		types.ErrCodeServiceModelNotReady,
		"model artifacts are not loaded; train a model and restart the service",
		nil,
	))
	return false
}

// translateEngineError maps engine failures onto API error codes. Typed
// application errors pass through untouched.
func translateEngineError(err error) error {
	if errors.Is(err, engine.ErrNotReady) {
		return types.NewAppError(
			types.ErrCodeServiceModelNotReady,
			"model artifacts are not loaded",
			nil,
		)
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeInternalInference, "inference failed", err)
}

// HandleModelInfo handles GET /v1/model/info. Serves the trained model's
// metadata verbatim.
func (h *PredictionHandler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}
	core.JSON(w, r, http.StatusOK, h.engine.Info())
}

// HandlePredict handles POST /v1/predict. The body is a bare feature map;
// any subset of the schema features is accepted.
func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	var features types.FeatureMap
	if err := core.DecodeJSON(w, r, &features); err != nil {
		core.Error(w, r, err)
		return
	}

	pred, err := h.engine.Predict(features)
	if err != nil {
		core.Error(w, r, translateEngineError(err))
		return
	}
	core.JSON(w, r, http.StatusOK, pred)
}

// HandlePredictBatch handles POST /v1/predict/batch. Rejects empty batches
// and batches above the row cap before any inference runs; a valid batch is
// classified as a whole and results come back in input order.
func (h *PredictionHandler) HandlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	var req BatchPredictRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	items, err := h.engine.PredictBatch(req.Readings)
	if err != nil {
		core.Error(w, r, translateEngineError(err))
		return
	}
	core.JSON(w, r, http.StatusOK, BatchPredictResponse{
		Predictions: items,
		Count:       len(items),
	})
}

// HandleClassify handles POST /v1/classify: the strict, caregiver-facing
// variant of predict. Field ranges are validated, the hour defaults to the
// current clock hour, and the response carries display metadata.
func (h *PredictionHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	var req types.ClassifyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	hour := now.Hour()
	if req.HourOfDay != nil {
		hour = *req.HourOfDay
	}
	trend := 0.0
	if req.MotionTrend != nil {
		trend = *req.MotionTrend
	}
	isNight := 0.0
	if types.IsNightHour(hour) {
		isNight = 1.0
	}

	pred, err := h.engine.Predict(types.FeatureMap{
		types.FeatureTemperature: req.Temperature,
		types.FeatureMotionLevel: req.MotionLevel,
		types.FeatureSoundLevel:  req.SoundLevel,
		types.FeatureHourOfDay:   float64(hour),
		types.FeatureIsNight:     isNight,
		types.FeatureMotionTrend: trend,
	})
	if err != nil {
		core.Error(w, r, translateEngineError(err))
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewClassificationResult(pred, now))
}

// HandleRetrain handles POST /v1/retrain. In-process retraining is not
// offered; models are trained with the trainer CLI and picked up on restart.
func (h *PredictionHandler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	core.Error(w, r, types.NewAppErrorWithDetails(
		types.ErrCodeNotImplementedRetrain,
		"in-process retraining is not available; run the trainer and restart the service",
		nil,
		map[string]any{"trainer": "cmd/trainer"},
	))
}

// HandleFHIRClassify handles POST /v1/fhir/classify. Accepts a FHIR
// Observation resource, extracts the sensor features from its components,
// and classifies them. Unknown FHIR fields are tolerated; a body that is
// not an Observation is rejected.
func (h *PredictionHandler) HandleFHIRClassify(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, core.MaxRequestBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidBundle,
			"failed to read observation body",
			nil,
		))
		return
	}

	obs, err := fhir.ParseObservation(body)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidBundle,
			"body is not a valid FHIR Observation",
			nil,
		))
		return
	}
	if obs.ResourceType != "" && obs.ResourceType != "Observation" {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidBundle,
			"resourceType must be Observation",
			nil,
			map[string]any{"resource_type": obs.ResourceType},
		))
		return
	}

	now := h.clock.Now()
	features := fhir.ExtractFeatures(obs, now)

	pred, err := h.engine.Predict(features)
	if err != nil {
		core.Error(w, r, translateEngineError(err))
		return
	}
	core.JSON(w, r, http.StatusOK, FHIRClassifyResponse{
		ClassificationResult: types.NewClassificationResult(pred, now),
		ExtractedFeatures:    features,
	})
}
