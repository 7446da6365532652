package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewErrorError(t *testing.T) {
	t.Run("code component and cause", func(t *testing.T) {
		err := NewNetworkError(ErrCodeFetchStatus, "unexpected status 404", errors.New("not found")).
			WithComponent("fragment_fetch")

		msg := err.Error()
		assert.Contains(t, msg, "[ERR_FETCH_STATUS]")
		assert.Contains(t, msg, "component:fragment_fetch")
		assert.Contains(t, msg, "unexpected status 404")
		assert.Contains(t, msg, ": not found")
	})

	t.Run("message only", func(t *testing.T) {
		err := &PreviewError{Message: "plain"}
		assert.Equal(t, "plain", err.Error())
	})
}

func TestPreviewErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("boom")
	err := NewSanitizeError(ErrCodeSanitizerPanic, "sanitizer panicked", cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("render: %w", err)
	assert.True(t, errors.Is(wrapped, &PreviewError{Type: ErrorTypeSanitize, Code: ErrCodeSanitizerPanic}))
	assert.False(t, errors.Is(wrapped, &PreviewError{Type: ErrorTypeSanitize, Code: ErrCodeUnknownProfile}))
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidMode, "bad mode").
		WithContext("mode", "loud").
		WithContext("allowed", []string{"raw", "sanitized"})

	require.NotNil(t, err.Context)
	assert.Equal(t, "loud", err.Context["mode"])
	assert.Len(t, err.Context, 2)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		security    bool
		network     bool
		sanitize    bool
	}{
		{"validation", NewValidationError("X", "x"), true, false, false, false},
		{"security", ErrPathTraversal("../etc"), false, true, false, false},
		{"network", NewNetworkError(ErrCodeFetchFailed, "x", nil), true, false, true, false},
		{"sanitize", NewSanitizeError(ErrCodeSanitizerPanic, "x", nil), true, false, false, true},
		{"media", NewMediaError(ErrCodePlaybackRejected, "x", nil), true, false, false, false},
		{"config", NewConfigError(ErrCodeConfigInvalid, "x"), false, false, false, false},
		{"internal", NewInternalError(ErrCodeInternalError, "x", nil), false, false, false, false},
		{"plain", errors.New("x"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.recoverable, IsRecoverable(wrapped))
			assert.Equal(t, tt.security, IsSecurityError(wrapped))
			assert.Equal(t, tt.network, IsNetworkError(wrapped))
			assert.Equal(t, tt.sanitize, IsSanitizeError(wrapped))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrUnknownProfile("svg"))
	assert.True(t, HasCode(err, ErrCodeUnknownProfile))
	assert.False(t, HasCode(err, ErrCodeInvalidLocator))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeUnknownProfile))
}

func TestErrInvalidLocator(t *testing.T) {
	cause := errors.New("scheme not allowed")
	err := ErrInvalidLocator("javascript:alert(1)", cause)

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Contains(t, err.Error(), "javascript:alert(1)")
	assert.True(t, errors.Is(err, cause))
}
