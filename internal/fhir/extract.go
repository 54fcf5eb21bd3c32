package fhir

import (
	"time"

	"carewatch/internal/types"
)

// ExtractFeatures pulls the sensor components out of an Observation. The
// result is a partial feature map: components that are absent stay unset so
// the vectorizer can default them. hour_of_day and is_night come from the
// supplied time; motion_trend starts at zero because a single Observation
// carries no reading history.
func ExtractFeatures(obs *Observation, now time.Time) types.FeatureMap {
	features := types.FeatureMap{}
	for i := range obs.Component {
		comp := &obs.Component[i]
		switch {
		case comp.hasCode(CodeTemperature):
			if comp.ValueQuantity != nil {
				features[types.FeatureTemperature] = comp.ValueQuantity.Value
			} else {
				features[types.FeatureTemperature] = 0
			}
		case comp.hasCode(CodeMotion):
			features[types.FeatureMotionLevel] = float64(comp.intValue())
		case comp.hasCode(CodeSound):
			features[types.FeatureSoundLevel] = float64(comp.intValue())
		}
	}

	hour := now.Hour()
	features[types.FeatureHourOfDay] = float64(hour)
	if types.IsNightHour(hour) {
		features[types.FeatureIsNight] = 1
	} else {
		features[types.FeatureIsNight] = 0
	}
	features[types.FeatureMotionTrend] = 0
	return features
}
