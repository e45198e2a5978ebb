package apperrors

import (
	"errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or an empty string if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes
const (
	ErrCodeReferenceNotFound = "REFERENCE_NOT_FOUND"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionSave       = "SESSION_SAVE_FAILED"
	ErrCodeSessionLoad       = "SESSION_LOAD_FAILED"
	ErrCodeSessionDelete     = "SESSION_DELETE_FAILED"
	ErrCodeMigration         = "MIGRATION_FAILED"
	ErrCodeCapture           = "CAPTURE_FAILED"
	ErrCodeComparison        = "COMPARISON_FAILED"
	ErrCodeFeedback          = "FEEDBACK_FAILED"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeFileOperation     = "FILE_OPERATION_FAILED"
)
