package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"carewatch/internal/types"
)

// errCodeValidationFailed is the generic structural-validation code used
// when no field-specific code applies.
const errCodeValidationFailed types.ErrorCode = "validation_failed"

// Validator wraps go-playground/validator for request body validation.
// It reports JSON field names rather than Go struct field names and maps
// known fields onto the service's typed error codes.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator configured for API request structs.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so error details line up with the
	// wire format clients actually sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct checks s against its validate struct tags. It returns
// nil on success and a *types.AppError (400) describing the first failed
// field otherwise, with every failed field listed in the details map.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		// InvalidValidationError: the caller passed a non-struct. This is
		// a programming error, not a client error.
		v.logger.Error("validator invoked on non-struct value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed internally", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = constraintMessage(fe)
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		codeForViolation(first),
		"invalid value for field "+first.Field(),
		nil,
		details,
	)
}

// codeForViolation maps a failed constraint onto the service's typed
// error codes where a specific one exists.
func codeForViolation(fe validator.FieldError) types.ErrorCode {
	switch fe.Field() {
	case "readings":
		if fe.Tag() == "max" {
			return types.ErrCodeValidationBatchSize
		}
		return types.ErrCodeValidationEmptyBatch
	case types.FeatureTemperature:
		return types.ErrCodeValidationInvalidTemperature
	case types.FeatureMotionLevel:
		return types.ErrCodeValidationInvalidMotion
	case types.FeatureSoundLevel:
		return types.ErrCodeValidationInvalidSound
	case types.FeatureHourOfDay:
		return types.ErrCodeValidationInvalidHour
	}
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	return errCodeValidationFailed
}

// constraintMessage renders a failed constraint as a short human-readable
// string for the error details map.
func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "max":
		return "must have at most " + fe.Param() + " items"
	default:
		return "failed constraint " + fe.Tag()
	}
}
