package core

import (
	"fmt"
)

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategorySelector                        // Selector invalid, unknown key, missing translation
	ErrCategoryResolution                      // Element not found, visibility wait failed
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryTransport                       // Portal unreachable, bad response envelope
	ErrCategoryMedia                           // Image or video decode/match failure
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategorySelector:
		return "selector"
	case ErrCategoryResolution:
		return "resolution"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryTransport:
		return "transport"
	case ErrCategoryMedia:
		return "media"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: invalid_selector, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches errors by category and code, so copies derived with WithCause
// or WithMessage still compare equal to their predefined prototype.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with fmt.Sprintf formatting
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Selector errors
	ErrInvalidSelector = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "invalid_selector",
		Message:  "Invalid selector: No valid selector found",
	}
	ErrUnknownSelectorKey = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "unknown_selector_key",
		Message:  "invalid selector key",
	}
	ErrMissingTranslation = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "missing_translation",
		Message:  "selector has no value for the requested language",
	}
	ErrSelectorNotCombinable = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "selector_not_combinable",
		Message:  "selector key is not supported in combination",
	}

	// Resolution errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrMethodMismatch = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "method_mismatch",
		Message:  "compiled query method is not supported by this resolver",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Transport errors
	ErrPortalUnreachable = &ExecutionError{
		Category: ErrCategoryTransport,
		Code:     "portal_unreachable",
		Message:  "could not connect to the device portal",
	}
	ErrInvalidResponse = &ExecutionError{
		Category: ErrCategoryTransport,
		Code:     "invalid_response",
		Message:  "portal returned an invalid response",
	}
	ErrTreeParse = &ExecutionError{
		Category: ErrCategoryTransport,
		Code:     "tree_parse",
		Message:  "could not parse hierarchy snapshot",
	}

	// Media errors
	ErrImageDecode = &ExecutionError{
		Category: ErrCategoryMedia,
		Code:     "image_decode",
		Message:  "could not decode image",
	}
	ErrVideoDecode = &ExecutionError{
		Category: ErrCategoryMedia,
		Code:     "video_decode",
		Message:  "could not decode video stream",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
