package errors

import (
	"errors"
	"fmt"
)

// Category classifies engine errors by how the caller should react.
type Category string

const (
	// CategoryInvalidParameter marks bad configuration or arguments. Fatal
	// at load time; aborts startup.
	CategoryInvalidParameter Category = "INVALID_PARAMETER"

	// CategoryDataUnavailable marks a per-instrument data fetch failure.
	// The instrument is skipped for the cycle and retried on the next one.
	CategoryDataUnavailable Category = "DATA_UNAVAILABLE"

	// CategoryInsufficientCapital is a no-op entry transition, not a
	// failure. Surfaced so callers can log it at debug level.
	CategoryInsufficientCapital Category = "INSUFFICIENT_CAPITAL"

	// CategoryFillFailed marks a rejected order intent. The tentative
	// capital reservation is released by the risk manager.
	CategoryFillFailed Category = "FILL_FAILED"

	// CategoryInternal covers unexpected failures inside an instrument's
	// pipeline. Contained at the per-instrument boundary.
	CategoryInternal Category = "INTERNAL"
)

// EngineError is a categorized error with component and operation context.
type EngineError struct {
	Category   Category
	Component  string
	Operation  string
	Message    string
	Underlying error
}

func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Recoverable reports whether processing may continue for other instruments
// and retry this one next cycle.
func (e *EngineError) Recoverable() bool {
	return e.Category != CategoryInvalidParameter
}

// New creates a categorized engine error.
func New(category Category, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap attaches category and context to an existing error. Returns nil for a
// nil error.
func Wrap(err error, category Category, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// NewInvalidParameter creates a configuration/argument error.
func NewInvalidParameter(component, message string) *EngineError {
	return New(CategoryInvalidParameter, component, "validate", message)
}

// NewDataUnavailable wraps a data source failure for one instrument.
func NewDataUnavailable(component, operation string, err error) *EngineError {
	return Wrap(err, CategoryDataUnavailable, component, operation)
}

// CategoryOf extracts the category of an error, or CategoryInternal when the
// error is not an EngineError.
func CategoryOf(err error) Category {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return CategoryInternal
}

// Is reports whether err carries the given category anywhere in its chain.
func Is(err error, category Category) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
