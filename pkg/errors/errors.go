// Package errors defines common error types for the scanner.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeSnapshotError = "SNAPSHOT_ERROR"
	CodeProviderError = "PROVIDER_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeStorageError  = "STORAGE_ERROR"
	CodeReportError   = "REPORT_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrSnapshotError = New(CodeSnapshotError, "snapshot error")
	ErrProviderError = New(CodeProviderError, "snapshot provider error")
	ErrDatabaseError = New(CodeDatabaseError, "database error")
	ErrStorageError  = New(CodeStorageError, "storage error")
	ErrReportError   = New(CodeReportError, "report error")
	ErrInvalidInput  = New(CodeInvalidInput, "invalid input")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrConfigError   = New(CodeConfigError, "configuration error")
)

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsProviderError checks if the error is a snapshot provider error.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProviderError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
