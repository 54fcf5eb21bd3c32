package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carewatch/internal/core"
	"carewatch/internal/readings"
	"carewatch/internal/types"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// ModelGate is the readiness slice of the prediction engine. Ingestion and
// history both wait for the model the same way the stateless routes do.
type ModelGate interface {
	EnsureReady() bool
}

// RecentReadingsResponse is the payload for GET /v1/readings/recent.
type RecentReadingsResponse struct {
	DeviceID string                 `json:"device_id"`
	Count    int                    `json:"count"`
	Readings []*types.ReadingRecord `json:"readings"`
}

// ReadingsHandler maps HTTP requests to the readings service. It is only
// mounted when a database is configured.
type ReadingsHandler struct {
	service readings.Service
	gate    ModelGate
	logger  *slog.Logger
}

// NewReadingsHandler creates a new ReadingsHandler with the provided
// dependencies.
func NewReadingsHandler(svc readings.Service, gate ModelGate, logger *slog.Logger) *ReadingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingsHandler{
		service: svc,
		gate:    gate,
		logger:  logger,
	}
}

// RegisterRoutes mounts the readings endpoints onto the v1 mux.
func (h *ReadingsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/readings", h.HandleIngest)
	r.Get("/readings/recent", h.HandleRecent)
}

func (h *ReadingsHandler) ensureReady(w http.ResponseWriter, r *http.Request) bool {
	if h.gate.EnsureReady() {
		return true
	}
	core.Error(w, r, types.NewAppError(
		types.ErrCodeServiceModelNotReady,
		"model artifacts are not loaded; train a model and restart the service",
		nil,
	))
	return false
}

// HandleIngest handles POST /v1/readings: classify one sensor reading and
// store the classified record. The service fills in the hour and the
// motion trend from stored history when the request omits them.
func (h *ReadingsHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	var req types.ClassifyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, result)
}

// HandleRecent handles GET /v1/readings/recent. Query parameters:
// device_id (required) and limit (optional, default 50, max 500).
func (h *ReadingsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if !h.ensureReady(w, r) {
		return
	}

	q := r.URL.Query()
	deviceID := q.Get("device_id")
	if deviceID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"device_id query parameter is required",
			nil,
		))
		return
	}

	limit := defaultRecentLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRecentLimit {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidLimit,
				"limit must be an integer between 1 and 500",
				nil,
				map[string]any{"limit": raw},
			))
			return
		}
		limit = parsed
	}

	records, err := h.service.Recent(r.Context(), deviceID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []*types.ReadingRecord{}
	}
	core.JSON(w, r, http.StatusOK, RecentReadingsResponse{
		DeviceID: deviceID,
		Count:    len(records),
		Readings: records,
	})
}
