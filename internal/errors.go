package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures into the taxonomy the command layer acts on
type ErrorType int

const (
	ErrNotAuthenticated ErrorType = iota
	ErrAuthenticationFailed
	ErrURLParse
	ErrNotFound
	ErrValidation
	ErrTransient
	ErrProtocol
	ErrEmptySelection
	ErrUserCancelled
)

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrNotAuthenticated:
		return "NotAuthenticated"
	case ErrAuthenticationFailed:
		return "AuthenticationFailed"
	case ErrURLParse:
		return "URLParse"
	case ErrNotFound:
		return "NotFound"
	case ErrValidation:
		return "ValidationFailed"
	case ErrTransient:
		return "Transient"
	case ErrProtocol:
		return "ProtocolError"
	case ErrEmptySelection:
		return "EmptySelection"
	case ErrUserCancelled:
		return "UserCancelled"
	default:
		return "Unknown"
	}
}

// CanvasError is a typed error with remote status context and a suggestion
// for the user. It is the only error shape that crosses package boundaries.
type CanvasError struct {
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Type       ErrorType `json:"type"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *CanvasError) Error() string {
	parts := []string{fmt.Sprintf("%s: %s", e.Type.String(), e.Message)}
	if e.StatusCode != 0 {
		parts[0] = fmt.Sprintf("%s (HTTP %d)", parts[0], e.StatusCode)
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, " - ")
}

// IsRetryable reports whether the failure is Transient and eligible for a
// bounded retry. Everything else is Permanent and surfaces immediately.
func (e *CanvasError) IsRetryable() bool {
	return e.Type == ErrTransient
}

// WithSuggestion adds a custom suggestion to the error
func (e *CanvasError) WithSuggestion(suggestion string) *CanvasError {
	e.Suggestion = suggestion
	return e
}

// NewCanvasError creates a CanvasError with the default suggestion for its type
func NewCanvasError(statusCode int, message string, errorType ErrorType) *CanvasError {
	return &CanvasError{
		StatusCode: statusCode,
		Message:    message,
		Type:       errorType,
		Suggestion: defaultSuggestion(errorType),
	}
}

func defaultSuggestion(errorType ErrorType) string {
	switch errorType {
	case ErrNotAuthenticated:
		return "Run 'canvas-cli auth' to configure your Canvas instance and access token"
	case ErrAuthenticationFailed:
		return "Check the instance URL and generate a fresh access token in Canvas under Account > Settings"
	case ErrURLParse:
		return "Paste a Canvas assignment URL like https://your.instructure.com/courses/123/assignments/456"
	case ErrNotFound:
		return "Verify the course and assignment IDs, or run without flags to pick interactively"
	case ErrTransient:
		return "Check your network connection and try again"
	case ErrProtocol:
		return "The Canvas API returned an unexpected response; try again or report the issue"
	case ErrEmptySelection:
		return "The remote API returned nothing to choose from"
	default:
		return ""
	}
}

// ClassifyStatus maps an HTTP status code onto the error taxonomy.
// 5xx is Transient; everything else in error range is Permanent.
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrAuthenticationFailed
	case statusCode == 404:
		return ErrNotFound
	case statusCode >= 500:
		return ErrTransient
	default:
		return ErrProtocol
	}
}

// TypeOf extracts the ErrorType from an error chain, or ErrProtocol if the
// error is not a CanvasError.
func TypeOf(err error) ErrorType {
	var ce *CanvasError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrProtocol
}

// IsType reports whether err carries the given ErrorType
func IsType(err error, t ErrorType) bool {
	var ce *CanvasError
	return errors.As(err, &ce) && ce.Type == t
}

// ValidationError reports invalid local input before any network call
type ValidationError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("validation error for %s: %s - Suggestion: %s", e.Field, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// Common constructors

// NewNotAuthenticatedError reports a missing or unreadable credential store
func NewNotAuthenticatedError(reason string) *CanvasError {
	return NewCanvasError(0, reason, ErrNotAuthenticated)
}

// NewAuthenticationFailedError reports a rejected credential
func NewAuthenticationFailedError(statusCode int, message string) *CanvasError {
	return NewCanvasError(statusCode, message, ErrAuthenticationFailed)
}

// NewURLParseError reports a pasted URL that does not match the Canvas shape
func NewURLParseError(rawURL string) *CanvasError {
	return NewCanvasError(0, fmt.Sprintf("unrecognized Canvas URL: %s", rawURL), ErrURLParse)
}

// NewNotFoundError reports a missing remote resource
func NewNotFoundError(resource string, id int64) *CanvasError {
	return NewCanvasError(404, fmt.Sprintf("%s %d not found", resource, id), ErrNotFound)
}

// NewTransientError reports a retry-eligible failure
func NewTransientError(statusCode int, message string) *CanvasError {
	return NewCanvasError(statusCode, message, ErrTransient)
}

// NewProtocolError reports a malformed remote response
func NewProtocolError(message string) *CanvasError {
	return NewCanvasError(0, message, ErrProtocol)
}

// NewEmptySelectionError reports an empty option list
func NewEmptySelectionError(what string) *CanvasError {
	return NewCanvasError(0, fmt.Sprintf("no %s available to choose from", what), ErrEmptySelection)
}

// NewUserCancelledError reports an explicit user abort. The command layer
// treats this as a clean exit, not a failure.
func NewUserCancelledError() *CanvasError {
	return NewCanvasError(0, "cancelled by user", ErrUserCancelled)
}
