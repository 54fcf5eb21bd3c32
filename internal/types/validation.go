package types

import (
	"fmt"
	"math"
)

// Validation constraint constants.
// Sensor bounds MUST match the calibration ranges of the deployed room
// sensors; readings outside them indicate a faulty device, not an outlier.
const (
	MinTemperatureC  = 0.0
	MaxTemperatureC  = 50.0
	MinMotionLevel   = 0.0
	MaxMotionLevel   = 100.0
	MinSoundLevel    = 0.0
	MaxSoundLevel    = 1023.0
	MinHourOfDay     = 0
	MaxHourOfDay     = 23
	MaxBatchReadings = 100
)

// ValidateTemperature checks a temperature against the supported sensor
// range. NaN and infinities are rejected before the range check.
func ValidateTemperature(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewAppError(ErrCodeValidationInvalidTemperature, "temperature must be a finite number", nil)
	}
	if v < MinTemperatureC || v > MaxTemperatureC {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidTemperature,
			fmt.Sprintf("temperature must be between %.0f and %.0f degrees C", MinTemperatureC, MaxTemperatureC),
			nil, map[string]any{"value": v})
	}
	return nil
}

// ValidateMotionLevel checks a motion level against the sensor range.
func ValidateMotionLevel(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinMotionLevel || v > MaxMotionLevel {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidMotion,
			fmt.Sprintf("motion_level must be between %.0f and %.0f", MinMotionLevel, MaxMotionLevel),
			nil, map[string]any{"value": v})
	}
	return nil
}

// ValidateSoundLevel checks a sound level against the sensor range.
func ValidateSoundLevel(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinSoundLevel || v > MaxSoundLevel {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidSound,
			fmt.Sprintf("sound_level must be between %.0f and %.0f", MinSoundLevel, MaxSoundLevel),
			nil, map[string]any{"value": v})
	}
	return nil
}

// ValidateHourOfDay checks an hour against the 24-hour clock.
func ValidateHourOfDay(h int) error {
	if h < MinHourOfDay || h > MaxHourOfDay {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidHour,
			"hour_of_day must be between 0 and 23",
			nil, map[string]any{"value": h})
	}
	return nil
}

// Validate implements the Validator interface for ClassifyRequest.
// It checks every sensor field against its calibrated range and the
// optional hour override against the 24-hour clock.
func (r *ClassifyRequest) Validate() error {
	if err := ValidateTemperature(r.Temperature); err != nil {
		return err
	}
	if err := ValidateMotionLevel(r.MotionLevel); err != nil {
		return err
	}
	if err := ValidateSoundLevel(r.SoundLevel); err != nil {
		return err
	}
	if r.HourOfDay != nil {
		if err := ValidateHourOfDay(*r.HourOfDay); err != nil {
			return err
		}
	}
	return nil
}
