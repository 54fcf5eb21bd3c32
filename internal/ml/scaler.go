package ml

import (
	"errors"
	"fmt"
	"math"
)

// StandardScaler centers features to zero mean and unit variance using the
// column statistics captured at fit time. Columns with zero variance keep
// a scale of 1 so transforming them is a no-op shift.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column mean and population standard deviation.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, errors.New("cannot fit scaler on empty data")
	}
	width := len(X[0])
	mean := make([]float64, width)
	scale := make([]float64, width)

	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

// Width returns the number of feature columns the scaler was fit on.
func (s *StandardScaler) Width() int { return len(s.Mean) }

// Transform returns a new scaled vector; the input is left untouched.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("vector has %d values, scaler expects %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformBatch scales each row independently.
func (s *StandardScaler) TransformBatch(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Validate checks the internal state of a scaler, typically one decoded
// from an artifact.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return errors.New("scaler has no columns")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d columns but scale has %d", len(s.Mean), len(s.Scale))
	}
	for j, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scaler column %d has invalid scale %v", j, v)
		}
	}
	return nil
}
