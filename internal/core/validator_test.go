package core

import (
	"errors"
	"net/http"
	"testing"

	"carewatch/internal/types"
)

type batchPayload struct {
	Readings []map[string]float64 `json:"readings" validate:"required,min=1,max=100"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(batchPayload{
		Readings: []map[string]float64{{"temperature": 22.0}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_EmptyBatch(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(batchPayload{Readings: []map[string]float64{}})
	if err == nil {
		t.Fatal("expected error for empty batch")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationEmptyBatch {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeValidationEmptyBatch)
	}
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", appErr.HTTPStatus())
	}
}

func TestValidateStruct_BatchTooLarge(t *testing.T) {
	v := NewValidator(testLogger())

	readings := make([]map[string]float64, types.MaxBatchReadings+1)
	for i := range readings {
		readings[i] = map[string]float64{"motion_level": 1}
	}

	err := v.ValidateStruct(batchPayload{Readings: readings})
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationBatchSize {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeValidationBatchSize)
	}
}

// TestValidateStruct_JSONFieldNames verifies error details use the wire
// field names, not the Go struct field names.
func TestValidateStruct_JSONFieldNames(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(batchPayload{})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if _, ok := appErr.Details["readings"]; !ok {
		t.Errorf("details keyed by %v, want json name \"readings\"", appErr.Details)
	}
}

func TestValidateStruct_RequiredFieldFallbackCode(t *testing.T) {
	v := NewValidator(testLogger())

	type payload struct {
		DeviceID string `json:"device_id" validate:"required"`
	}
	err := v.ValidateStruct(payload{})

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeValidationMissingField)
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct("not a struct")
	if err == nil {
		t.Fatal("expected error for non-struct value")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("code = %q, want internal", appErr.Code)
	}
}
