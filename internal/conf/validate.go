package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of settings validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateBridgeSettings(&settings.Bridge); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateBridgeSettings validates the bridge-specific settings
func validateBridgeSettings(settings *BridgeSettings) error {
	var errs []string

	switch strings.ToLower(settings.Backend) {
	case "legacy", "lowlevel", "auto":
	default:
		errs = append(errs, fmt.Sprintf("invalid backend %q, must be legacy, lowlevel or auto", settings.Backend))
	}

	if settings.Timing.SafetyCeiling <= 0 {
		errs = append(errs, "timing.safetyceiling must be positive")
	}
	if settings.Timing.DrainPollInterval <= 0 {
		errs = append(errs, "timing.drainpollinterval must be positive")
	}
	if settings.Timing.DrainGrace <= 0 {
		errs = append(errs, "timing.draingrace must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("bridge settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
