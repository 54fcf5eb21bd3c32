package types

import (
	"time"
)

// SensorReading is a single sensor sample from a monitored room. It is the
// canonical row format for training datasets, the ingestion API, and the
// readings store. ActivityClass is empty for unlabeled samples.
type SensorReading struct {
	ID          string    `json:"id" db:"id"`
	DeviceID    string    `json:"device_id,omitempty" db:"device_id"`
	Timestamp   time.Time `json:"timestamp" db:"recorded_at"`
	Temperature float64   `json:"temperature" db:"temperature"`
	MotionLevel float64   `json:"motion_level" db:"motion_level"`
	SoundLevel  float64   `json:"sound_level" db:"sound_level"`
	HourOfDay   int       `json:"hour_of_day" db:"hour_of_day"`
	IsNight     bool      `json:"is_night" db:"is_night"`
	MotionTrend float64   `json:"motion_trend" db:"motion_trend"`

	ActivityClass ActivityClass `json:"activity_class,omitempty" db:"activity_class"`
}

// Features returns the reading as a feature map keyed by the canonical
// feature names, ready for vectorization.
func (r *SensorReading) Features() FeatureMap {
	isNight := 0.0
	if r.IsNight {
		isNight = 1.0
	}
	return FeatureMap{
		FeatureTemperature: r.Temperature,
		FeatureMotionLevel: r.MotionLevel,
		FeatureSoundLevel:  r.SoundLevel,
		FeatureHourOfDay:   float64(r.HourOfDay),
		FeatureIsNight:     isNight,
		FeatureMotionTrend: r.MotionTrend,
	}
}

// FeatureMap is the permissive feature payload accepted by the predict
// endpoints. Schema features missing from the map default to zero during
// vectorization; unknown keys are ignored.
type FeatureMap map[string]float64

// Prediction is the full classification result for a single reading,
// including the complete per-class confidence distribution. Confidence
// always equals the distribution entry for ActivityClass.
type Prediction struct {
	ActivityClass    ActivityClass    `json:"activity_class"`
	Confidence       float64          `json:"confidence"`
	ConfidenceScores ConfidenceScores `json:"confidence_scores"`
}

// BatchPredictionItem is the compact per-row result returned by batch
// classification. Index is the 0-based position of the corresponding
// input row; output order matches input order.
type BatchPredictionItem struct {
	Index         int           `json:"index"`
	ActivityClass ActivityClass `json:"activity_class"`
	Confidence    float64       `json:"confidence"`
}

// ClassifyRequest is the strict, validated input for the classify endpoints.
// HourOfDay and MotionTrend are optional; when omitted the service fills in
// the current hour and a zero trend.
type ClassifyRequest struct {
	DeviceID    string   `json:"device_id,omitempty"`
	Temperature float64  `json:"temperature"`
	MotionLevel float64  `json:"motion_level"`
	SoundLevel  float64  `json:"sound_level"`
	HourOfDay   *int     `json:"hour_of_day,omitempty"`
	MotionTrend *float64 `json:"motion_trend,omitempty"`
}

// ClassificationResult is the dashboard-facing classification summary with
// display metadata attached.
type ClassificationResult struct {
	ActivityClass   ActivityClass `json:"activity_class"`
	ActivityDisplay string        `json:"activity_display"`
	Confidence      float64       `json:"confidence"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	RiskColor       string        `json:"risk_color"`
	Timestamp       time.Time     `json:"timestamp"`
}

// NewClassificationResult derives the display fields for a prediction.
func NewClassificationResult(p *Prediction, now time.Time) ClassificationResult {
	risk := p.ActivityClass.Risk()
	return ClassificationResult{
		ActivityClass:   p.ActivityClass,
		ActivityDisplay: p.ActivityClass.DisplayName(),
		Confidence:      p.Confidence,
		RiskLevel:       risk,
		RiskColor:       risk.Color(),
		Timestamp:       now,
	}
}

// ModelMetrics captures holdout evaluation results recorded at training time.
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	F1Weighted      float64 `json:"f1_score"`
	CVAccuracyMean  float64 `json:"cv_accuracy_mean,omitempty"`
	CVAccuracyStd   float64 `json:"cv_accuracy_std,omitempty"`
	ConfusionMatrix [][]int `json:"confusion_matrix,omitempty"`
}

// ModelMetadata describes a trained artifact set. The trainer writes it next
// to the model artifacts and the model info endpoint serves it verbatim.
// Features lists the vectorization schema in column order; Classes lists the
// label set in encoder index order.
type ModelMetadata struct {
	ModelType         ModelKind          `json:"model_type"`
	Features          []string           `json:"features"`
	Classes           []string           `json:"classes"`
	Metrics           ModelMetrics       `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	TrainedAt         time.Time          `json:"trained_at"`
}

// ModelInfo is the model info endpoint payload.
type ModelInfo struct {
	ModelLoaded bool           `json:"model_loaded"`
	Metadata    *ModelMetadata `json:"metadata,omitempty"`
	Classes     []string       `json:"classes,omitempty"`
	Features    []string       `json:"features,omitempty"`
}

// ReadingRecord is a persisted sensor reading together with the
// classification stored for it, if any.
type ReadingRecord struct {
	SensorReading
	Confidence       *float64         `json:"confidence,omitempty" db:"confidence"`
	ConfidenceScores ConfidenceScores `json:"confidence_scores,omitempty" db:"confidence_scores"`
	RiskLevel        RiskLevel        `json:"risk_level,omitempty" db:"risk_level"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}
