package hydro

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned when an entity does not exist or is outside
	// the principal's visible set.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the principal is not the owner.
	ErrForbidden = errors.New("you do not have permission for this action")

	// ErrValidation is returned when a payload violates a field constraint.
	ErrValidation = errors.New("validation failed")

	// ErrBadRequest is returned for malformed query parameters.
	ErrBadRequest = errors.New("bad request")

	// ErrConfig is returned when a range check is configured with min > max.
	ErrConfig = errors.New("invalid range configuration")
)

// RangeError reports a reading outside its allowed inclusive range.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s is outside [%s, %s]", e.Field,
		formatFloat(e.Value), formatFloat(e.Min), formatFloat(e.Max))
}

// Unwrap makes errors.Is(err, ErrValidation) true.
func (e *RangeError) Unwrap() error { return ErrValidation }

// FieldError reports a missing or malformed field in a payload.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap makes errors.Is(err, ErrValidation) true.
func (e *FieldError) Unwrap() error { return ErrValidation }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// badRequest wraps ErrBadRequest with a client-facing message.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}
