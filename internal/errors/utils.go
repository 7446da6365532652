package errors

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Wrap wraps err as a PreviewError. An existing PreviewError keeps its
// context and component.
func Wrap(err error, errType ErrorType, code, message string) *PreviewError {
	if err == nil {
		return nil
	}

	var pe *PreviewError
	if errors.As(err, &pe) {
		return &PreviewError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       pe,
			Context:     pe.Context,
			Component:   pe.Component,
			Recoverable: pe.Recoverable,
		}
	}

	return &PreviewError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeNetwork,
	}
}

// WrapSecurity wraps an error as a security error (non-recoverable)
func WrapSecurity(err error, code, message string) *PreviewError {
	pe := Wrap(err, ErrorTypeSecurity, code, message)
	if pe != nil {
		pe.Recoverable = false
	}

	return pe
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *PreviewError {
	pe := Wrap(err, ErrorTypeConfig, code, message)
	if pe != nil {
		pe.Recoverable = false
	}

	return pe
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *PreviewError {
	pe := Wrap(err, ErrorTypeInternal, code, message)
	if pe != nil {
		pe.Recoverable = false
	}

	return pe
}

// GetErrorContext flattens a PreviewError's fields into a map for logging.
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	var pe *PreviewError
	if !errors.As(err, &pe) {
		return map[string]interface{}{
			"message": err.Error(),
			"type":    "unknown",
		}
	}

	context := make(map[string]interface{}, len(pe.Context)+4)
	for k, v := range pe.Context {
		context[k] = v
	}
	if pe.Component != "" {
		context["component"] = pe.Component
	}
	context["type"] = string(pe.Type)
	context["code"] = pe.Code
	context["recoverable"] = pe.Recoverable

	return context
}

// GetRootCause returns the deepest error in the chain.
func GetRootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}

	return nil
}

// CombineErrors merges the non-nil errors. A single error is returned as is.
func CombineErrors(errs ...error) error {
	return multierr.Combine(errs...)
}

// Errors splits a combined error back into its parts.
func Errors(err error) []error {
	return multierr.Errors(err)
}

// FormatError renders err for the terminal, appending suggestions when err
// is an EnhancedError.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ee *EnhancedError
	if errors.As(err, &ee) {
		return ee.Error()
	}

	parts := Errors(err)
	if len(parts) <= 1 {
		return err.Error()
	}

	out := fmt.Sprintf("%d errors occurred:", len(parts))
	for _, part := range parts {
		out += "\n  - " + part.Error()
	}

	return out
}
