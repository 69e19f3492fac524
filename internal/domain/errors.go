// Package domain provides the shared submission types and canonical errors
// used by the capture client and the receiver.
package domain

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of a pipeline error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a payload with an unrecognized kind or
	// missing the fields its kind requires.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeInvalidImage indicates image bytes that could not be decoded.
	ErrorTypeInvalidImage ErrorType = "invalid_image"
)

// Error is a client-visible pipeline error. Backend failures never surface
// as an Error; they are recorded as data instead.
type Error struct {
	Type    ErrorType
	Message string
}

var (
	// ErrInvalidRequest matches any Error of type ErrorTypeInvalidRequest.
	ErrInvalidRequest = &Error{Type: ErrorTypeInvalidRequest}

	// ErrInvalidImage matches any Error of type ErrorTypeInvalidImage.
	ErrInvalidImage = &Error{Type: ErrorTypeInvalidImage}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}
	return e.Message
}

// Is reports whether target is a sentinel of the same type, so callers can use
// errors.Is(err, domain.ErrInvalidImage).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// HTTPStatusCode returns the status code the ingest endpoint answers with.
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeInvalidImage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// InvalidRequest builds an ErrorTypeInvalidRequest error.
func InvalidRequest(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidImage builds an ErrorTypeInvalidImage error.
func InvalidImage(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInvalidImage, Message: fmt.Sprintf(format, args...)}
}
