package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeCapture, "capture failed", nil)

	assert.NotNil(t, err)
	assert.Equal(t, ErrCodeCapture, err.Code)
	assert.Equal(t, "capture failed", err.Message)
	assert.Nil(t, err.Cause)
}

func TestNew_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeCapture, "capture failed", cause)

	assert.Equal(t, ErrCodeCapture, err.Code)
	assert.Equal(t, cause, err.Cause)
}

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeSessionNotFound, "no session with id abc", nil)
	errorString := err.Error()

	assert.Contains(t, errorString, ErrCodeSessionNotFound)
	assert.Contains(t, errorString, "no session with id abc")
}

func TestAppError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeSessionSave, "write failed", cause)
	errorString := err.Error()

	assert.Contains(t, errorString, ErrCodeSessionSave)
	assert.Contains(t, errorString, "write failed")
	assert.Contains(t, errorString, "underlying error")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeCapture, "capture failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	err := New(ErrCodeReferenceNotFound, "missing", nil)
	assert.Equal(t, ErrCodeReferenceNotFound, CodeOf(err))

	// Wrapped AppErrors are still found.
	wrapped := fmt.Errorf("while starting: %w", err)
	assert.Equal(t, ErrCodeReferenceNotFound, CodeOf(wrapped))

	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestHasCode(t *testing.T) {
	err := New(ErrCodeSessionNotFound, "nope", nil)

	assert.True(t, HasCode(err, ErrCodeSessionNotFound))
	assert.False(t, HasCode(err, ErrCodeCapture))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeCapture))
}

func TestErrorCodes_Unique(t *testing.T) {
	codes := []string{
		ErrCodeReferenceNotFound,
		ErrCodeSessionNotFound,
		ErrCodeSessionSave,
		ErrCodeSessionLoad,
		ErrCodeSessionDelete,
		ErrCodeMigration,
		ErrCodeCapture,
		ErrCodeComparison,
		ErrCodeFeedback,
		ErrCodeConfigInvalid,
		ErrCodeInvalidInput,
		ErrCodeFileOperation,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate error code: %s", code)
		seen[code] = true
	}
}
