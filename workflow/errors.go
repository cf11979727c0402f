package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode classifies configuration errors raised at definition-build time or
// on first occurrence during a run. Step execution failures are never surfaced
// as errors; they are captured into the errors slot instead.
type ErrorCode string

const (
	ErrInvalidDefinition ErrorCode = "INVALID_DEFINITION"
	ErrSlotDuplicate     ErrorCode = "SLOT_DUPLICATE"
	ErrSlotUnregistered  ErrorCode = "SLOT_UNREGISTERED"
	ErrStepDuplicate     ErrorCode = "STEP_DUPLICATE"
	ErrStepUnknown       ErrorCode = "STEP_UNKNOWN"
	ErrEmptyDecision     ErrorCode = "EMPTY_DECISION"
	ErrTypeMismatch      ErrorCode = "TYPE_MISMATCH"
)

// ConfigError represents a programming mistake in the workflow definition or
// router, as opposed to a runtime data issue.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func newConfigError(code ErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
