// Package errors provides the structured error type shared by the preview
// components, the site server and the CLI.
//
// Errors carry a Type (what class of failure), a Code (a stable identifier
// usable in tests and logs) and a Recoverable flag. The rendering components
// never surface these errors to a page: they log them and degrade to
// "nothing rendered", so the type mostly exists to make diagnostics precise.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeSanitize   ErrorType = "sanitize"
	ErrorTypeMedia      ErrorType = "media"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnknownProfile   = "ERR_UNKNOWN_PROFILE"
	ErrCodeSanitizerPanic   = "ERR_SANITIZER_PANIC"
	ErrCodeInvalidLocator   = "ERR_INVALID_LOCATOR"
	ErrCodeInvalidMode      = "ERR_INVALID_MODE"
	ErrCodeFetchFailed      = "ERR_FETCH_FAILED"
	ErrCodeFetchStatus      = "ERR_FETCH_STATUS"
	ErrCodeFetchTooLarge    = "ERR_FETCH_TOO_LARGE"
	ErrCodeSourceClosed     = "ERR_SOURCE_CLOSED"
	ErrCodePlaybackRejected = "ERR_PLAYBACK_REJECTED"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeAssetType        = "ERR_ASSET_TYPE"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeCSPViolation     = "ERR_CSP_VIOLATION"
	ErrCodeArticleNotFound  = "ERR_ARTICLE_NOT_FOUND"
	ErrCodeFrontMatter      = "ERR_FRONT_MATTER"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// PreviewError is a structured error type with context.
type PreviewError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *PreviewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *PreviewError) Is(target error) bool {
	var t *PreviewError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PreviewError) WithContext(key string, value interface{}) *PreviewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *PreviewError) WithComponent(component string) *PreviewError {
	e.Component = component

	return e
}

// WithCause sets the underlying cause.
func (e *PreviewError) WithCause(cause error) *PreviewError {
	e.Cause = cause

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PreviewError {
	return &PreviewError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewNetworkError creates a network error. Fetch failures are recoverable:
// the caller renders nothing and carries on.
func NewNetworkError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSanitizeError creates a sanitizer failure error.
func NewSanitizeError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:        ErrorTypeSanitize,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewMediaError creates a media playback error.
func NewMediaError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:        ErrorTypeMedia,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return hasType(err, ErrorTypeSecurity)
}

// IsNetworkError checks if an error came from fetching content.
func IsNetworkError(err error) bool {
	return hasType(err, ErrorTypeNetwork)
}

// IsSanitizeError checks if an error came from the sanitizer.
func IsSanitizeError(err error) bool {
	return hasType(err, ErrorTypeSanitize)
}

// HasCode reports whether err is a PreviewError carrying code.
func HasCode(err error, code string) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Code == code
	}

	return false
}

func hasType(err error, t ErrorType) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *PreviewError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *PreviewError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrUnknownProfile creates an unknown sanitization profile error.
func ErrUnknownProfile(name string) *PreviewError {
	return NewValidationError(ErrCodeUnknownProfile, "unknown sanitization profile: "+name)
}

// ErrInvalidLocator creates a locator validation error.
func ErrInvalidLocator(locator string, cause error) *PreviewError {
	return NewValidationError(ErrCodeInvalidLocator, "invalid locator: "+locator).WithCause(cause)
}
