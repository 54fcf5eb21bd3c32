package types

import "strings"

// ActivityClass labels the behavior state inferred from a sensor reading.
type ActivityClass string

const (
	ActivitySleeping     ActivityClass = "SLEEPING"
	ActivityResting      ActivityClass = "RESTING"
	ActivityActive       ActivityClass = "ACTIVE"
	ActivityRestless     ActivityClass = "RESTLESS"
	ActivityFallRisk     ActivityClass = "FALL_RISK"
	ActivityFallDetected ActivityClass = "FALL_DETECTED"
)

// AllActivityClasses lists every class the service can emit, ordered from
// lowest to highest monitoring concern.
var AllActivityClasses = []ActivityClass{
	ActivitySleeping,
	ActivityResting,
	ActivityActive,
	ActivityRestless,
	ActivityFallRisk,
	ActivityFallDetected,
}

// DisplayName returns a human-readable form of the class name, with
// underscores replaced by spaces and each word title-cased.
// "FALL_DETECTED" becomes "Fall Detected".
func (c ActivityClass) DisplayName() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// RiskLevel grades how urgently a caregiver should react to a classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskNormal   RiskLevel = "NORMAL"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// Risk returns the monitoring risk level associated with an activity class.
// Unrecognized classes map to RiskUnknown rather than failing.
func (c ActivityClass) Risk() RiskLevel {
	switch c {
	case ActivitySleeping, ActivityResting:
		return RiskLow
	case ActivityActive:
		return RiskNormal
	case ActivityRestless:
		return RiskMedium
	case ActivityFallRisk:
		return RiskHigh
	case ActivityFallDetected:
		return RiskCritical
	default:
		return RiskUnknown
	}
}

// Color returns the hex display color dashboard clients use to render a
// risk badge for this level.
func (l RiskLevel) Color() string {
	switch l {
	case RiskLow:
		return "#22c55e"
	case RiskNormal:
		return "#3b82f6"
	case RiskMedium:
		return "#f59e0b"
	case RiskHigh:
		return "#ef4444"
	case RiskCritical:
		return "#dc2626"
	default:
		return "#6b7280"
	}
}

// ModelKind identifies the classifier family recorded in training metadata.
type ModelKind string

const (
	ModelDecisionTree ModelKind = "decision_tree"
	ModelRandomForest ModelKind = "random_forest"
)

// Night window bounds for the is_night feature.
// An hour h counts as night when h >= NightStartHour || h < NightEndHour.
const (
	NightStartHour = 22
	NightEndHour   = 6
)

// IsNightHour reports whether the given hour of day (0-23) falls inside
// the overnight window.
func IsNightHour(hour int) bool {
	return hour >= NightStartHour || hour < NightEndHour
}
