// Package readings implements sensor reading ingestion: motion-trend
// derivation from stored history, classification through the prediction
// engine, and persistence of the classified reading. The stateless predict
// endpoints never touch this package; only ingestion and history do.
package readings

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"carewatch/internal/types"
)

// Predictor is the slice of the prediction engine the ingestion service
// uses. Satisfied by *engine.Engine.
type Predictor interface {
	Predict(features types.FeatureMap) (*types.Prediction, error)
}

// Store provides data access for stored sensor readings. Satisfied by
// *db.ReadingRepository.
type Store interface {
	Insert(ctx context.Context, rec *types.ReadingRecord) error
	LatestMotionLevel(ctx context.Context, deviceID string) (float64, bool, error)
	Recent(ctx context.Context, deviceID string, limit int) ([]*types.ReadingRecord, error)
}

// Service ingests sensor readings and serves their stored history.
type Service interface {
	Ingest(ctx context.Context, req *types.ClassifyRequest) (*types.ClassificationResult, error)
	Recent(ctx context.Context, deviceID string, limit int) ([]*types.ReadingRecord, error)
}

type service struct {
	predictor Predictor
	store     Store
	logger    *slog.Logger
	clock     types.Clock
}

// NewService creates the ingestion service with the provided dependencies.
func NewService(predictor Predictor, store Store, logger *slog.Logger, clock types.Clock) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &service{
		predictor: predictor,
		store:     store,
		logger:    logger,
		clock:     clock,
	}
}

// Ingest classifies one incoming reading and stores the classified record.
// The hour defaults to the current clock hour, is_night derives from the
// hour, and the motion trend derives from the device's last stored motion
// level unless the request carries an explicit trend.
func (s *service) Ingest(ctx context.Context, req *types.ClassifyRequest) (*types.ClassificationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	hour := now.Hour()
	if req.HourOfDay != nil {
		hour = *req.HourOfDay
	}

	trend, err := s.motionTrend(ctx, req)
	if err != nil {
		return nil, err
	}

	reading := types.SensorReading{
		ID:          uuid.NewString(),
		DeviceID:    req.DeviceID,
		Timestamp:   now,
		Temperature: req.Temperature,
		MotionLevel: req.MotionLevel,
		SoundLevel:  req.SoundLevel,
		HourOfDay:   hour,
		IsNight:     types.IsNightHour(hour),
		MotionTrend: trend,
	}

	pred, err := s.predictor.Predict(reading.Features())
	if err != nil {
		return nil, err
	}

	reading.ActivityClass = pred.ActivityClass
	confidence := pred.Confidence
	rec := &types.ReadingRecord{
		SensorReading:    reading,
		Confidence:       &confidence,
		ConfidenceScores: pred.ConfidenceScores,
		RiskLevel:        pred.ActivityClass.Risk(),
		CreatedAt:        now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("reading classified",
		"reading_id", rec.ID,
		"device_id", req.DeviceID,
		"activity_class", string(pred.ActivityClass),
		"confidence", pred.Confidence,
		"motion_trend", trend,
	)

	result := types.NewClassificationResult(pred, now)
	return &result, nil
}

// Recent lists the newest stored readings, most recent first.
func (s *service) Recent(ctx context.Context, deviceID string, limit int) ([]*types.ReadingRecord, error) {
	return s.store.Recent(ctx, deviceID, limit)
}

// motionTrend resolves the trend feature: an explicit request value wins,
// otherwise the trend is the motion delta against the device's last stored
// reading, and zero when there is no history to compare against.
func (s *service) motionTrend(ctx context.Context, req *types.ClassifyRequest) (float64, error) {
	if req.MotionTrend != nil {
		return *req.MotionTrend, nil
	}
	if req.DeviceID == "" {
		return 0, nil
	}
	prev, found, err := s.store.LatestMotionLevel(ctx, req.DeviceID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return req.MotionLevel - prev, nil
}
