package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Identity and connection errors
	ErrConnection ErrorCode = "CONNECTION"

	// Repository descriptor errors
	ErrDescriptorInvalid ErrorCode = "DESCRIPTOR_INVALID"

	// Staging pipeline errors
	ErrFetch    ErrorCode = "FETCH"
	ErrStage    ErrorCode = "STAGE"
	ErrTransfer ErrorCode = "TRANSFER"
	ErrInstall  ErrorCode = "INSTALL"

	// Remote execution errors
	ErrRemoteCommand ErrorCode = "REMOTE_COMMAND"

	// Attribute errors
	ErrAttributes ErrorCode = "ATTRIBUTES"
)

// SoloError represents a structured error with code and details
type SoloError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *SoloError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SoloError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *SoloError) Is(target error) bool {
	var targetErr *SoloError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new SoloError with the given code and message
func New(code ErrorCode, message string) *SoloError {
	return &SoloError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new SoloError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SoloError {
	return &SoloError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a SoloError.
// Callers must only pass non-nil errors when the result is returned as an
// error interface, since a nil *SoloError is not a nil error.
func Wrap(err error, code ErrorCode, message string) *SoloError {
	if err == nil {
		return nil
	}
	return &SoloError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *SoloError {
	if err == nil {
		return nil
	}
	return &SoloError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *SoloError) WithDetail(key string, value interface{}) *SoloError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *SoloError) WithDetails(details map[string]interface{}) *SoloError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var soloErr *SoloError
	if errors.As(err, &soloErr) {
		return soloErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a SoloError
func GetErrorCode(err error) ErrorCode {
	var soloErr *SoloError
	if errors.As(err, &soloErr) {
		return soloErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a SoloError
func GetErrorDetails(err error) map[string]interface{} {
	var soloErr *SoloError
	if errors.As(err, &soloErr) {
		return soloErr.Details
	}
	return nil
}
