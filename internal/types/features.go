package types

// Canonical feature keys for the classifier input vector.
// All components MUST use these exact keys: the trainer records them in
// model metadata, the engine vectorizes by them, and the data generator
// emits CSV headers with them.
const (
	FeatureTemperature = "temperature"
	FeatureMotionLevel = "motion_level"
	FeatureSoundLevel  = "sound_level"
	FeatureHourOfDay   = "hour_of_day"
	FeatureIsNight     = "is_night"
	FeatureMotionTrend = "motion_trend"
)

// DefaultFeatureOrder is the training-time column order. Runtime
// vectorization follows the order recorded in model metadata, which the
// trainer seeds from this list.
var DefaultFeatureOrder = []string{
	FeatureTemperature,
	FeatureMotionLevel,
	FeatureSoundLevel,
	FeatureHourOfDay,
	FeatureIsNight,
	FeatureMotionTrend,
}
