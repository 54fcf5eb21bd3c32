package types

import (
	"testing"
)

// --- ActivityClass Tests ---

func TestActivityClassDisplayName(t *testing.T) {
	tests := []struct {
		class ActivityClass
		want  string
	}{
		{ActivitySleeping, "Sleeping"},
		{ActivityResting, "Resting"},
		{ActivityActive, "Active"},
		{ActivityRestless, "Restless"},
		{ActivityFallRisk, "Fall Risk"},
		{ActivityFallDetected, "Fall Detected"},
		{ActivityClass("UNKNOWN_STATE"), "Unknown State"},
		{ActivityClass(""), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActivityClassRisk(t *testing.T) {
	tests := []struct {
		class ActivityClass
		want  RiskLevel
	}{
		{ActivitySleeping, RiskLow},
		{ActivityResting, RiskLow},
		{ActivityActive, RiskNormal},
		{ActivityRestless, RiskMedium},
		{ActivityFallRisk, RiskHigh},
		{ActivityFallDetected, RiskCritical},
		{ActivityClass("SOMETHING_ELSE"), RiskUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.Risk(); got != tt.want {
				t.Errorf("Risk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRiskLevelColor(t *testing.T) {
	tests := []struct {
		level RiskLevel
		want  string
	}{
		{RiskLow, "#22c55e"},
		{RiskNormal, "#3b82f6"},
		{RiskMedium, "#f59e0b"},
		{RiskHigh, "#ef4444"},
		{RiskCritical, "#dc2626"},
		{RiskUnknown, "#6b7280"},
		{RiskLevel("bogus"), "#6b7280"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Color(); got != tt.want {
				t.Errorf("Color() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllActivityClasses_Complete(t *testing.T) {
	if len(AllActivityClasses) != 6 {
		t.Fatalf("AllActivityClasses has %d entries, want 6", len(AllActivityClasses))
	}
	seen := make(map[ActivityClass]bool, len(AllActivityClasses))
	for _, c := range AllActivityClasses {
		if seen[c] {
			t.Errorf("duplicate class %q", c)
		}
		seen[c] = true
		if c.Risk() == RiskUnknown {
			t.Errorf("class %q has no risk mapping", c)
		}
	}
}

// --- IsNightHour Tests ---

func TestIsNightHour(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{0, true},
		{1, true},
		{2, true},
		{3, true},
		{4, true},
		{5, true},
		{6, false},
		{7, false},
		{12, false},
		{21, false},
		{22, true},
		{23, true},
	}

	for _, tt := range tests {
		if got := IsNightHour(tt.hour); got != tt.want {
			t.Errorf("IsNightHour(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}
