package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	err := New(CodeSnapshotError, "capture failed")
	assert.Equal(t, "[SNAPSHOT_ERROR] capture failed", err.Error())

	wrapped := Wrap(CodeProviderError, "provider unavailable", fmt.Errorf("dial timeout"))
	assert.Contains(t, wrapped.Error(), "PROVIDER_ERROR")
	assert.Contains(t, wrapped.Error(), "dial timeout")
}

func TestAppErrorIs(t *testing.T) {
	err := Wrap(CodeNotFound, "snapshot missing", fmt.Errorf("id s-1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDatabaseError))
	assert.True(t, IsNotFound(err))
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := Wrap(CodeStorageError, "upload failed", inner)
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeConfigError, GetErrorCode(New(CodeConfigError, "bad config")))
	assert.Equal(t, CodeUnknown, GetErrorCode(fmt.Errorf("plain error")))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "bad config", GetErrorMessage(New(CodeConfigError, "bad config")))
	assert.Equal(t, "plain", GetErrorMessage(fmt.Errorf("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}
