package hydro

import (
	"fmt"
	"math"
	"strings"
)

// Allowed reading ranges, inclusive on both ends.
const (
	PHMin          = 0
	PHMax          = 14
	TemperatureMin = 0
	TemperatureMax = 100
	TDSMin         = 0
	TDSMax         = 2000
)

const maxSystemNameLength = 255

// ValidateRange checks that value lies in [min, max].
// A nil value is absent and always passes.
func ValidateRange(field string, value *float64, min, max float64) error {
	if min > max {
		return fmt.Errorf("%w: %s min %s exceeds max %s", ErrConfig, field, formatFloat(min), formatFloat(max))
	}
	if value == nil {
		return nil
	}
	v := *value
	// NaN fails both comparisons, so test for it explicitly.
	if math.IsNaN(v) || v < min || v > max {
		return &RangeError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}

// ValidateReadings range-checks each present reading. The first failure is returned.
func ValidateReadings(ph, temperature, tds *float64) error {
	if err := ValidateRange("ph", ph, PHMin, PHMax); err != nil {
		return err
	}
	if err := ValidateRange("temperature", temperature, TemperatureMin, TemperatureMax); err != nil {
		return err
	}
	return ValidateRange("tds", tds, TDSMin, TDSMax)
}

// validateSystemName requires a non-blank name within the column limit.
func validateSystemName(name *string) error {
	if name == nil {
		return &FieldError{Field: "name", Message: "This field is required."}
	}
	if strings.TrimSpace(*name) == "" {
		return &FieldError{Field: "name", Message: "This field may not be blank."}
	}
	if len(*name) > maxSystemNameLength {
		return &FieldError{Field: "name", Message: fmt.Sprintf("Ensure this field has no more than %d characters.", maxSystemNameLength)}
	}
	return nil
}
