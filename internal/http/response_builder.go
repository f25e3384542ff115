// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It provides a type-safe, fluent API for setting status codes, headers and
// payloads with consistent error formatting.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Payload sets the value that is JSON-encoded on Write.
func (b *JSONResponseBuilder) Payload(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Error sets the standard error payload {"error": message}.
func (b *JSONResponseBuilder) Error(message string) *JSONResponseBuilder {
	b.payload = map[string]string{"error": message}
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if b.payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.payload); err != nil {
		slog.Error("Failed to encode response payload", "error", err)
	}
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Error(message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Error(message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNotFound).Error(message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusInternalServerError).Error(message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods).
		Error("method not allowed")
}

// DomainError maps a domain error onto the matching HTTP error response:
// invalid input 422, unknown ids 404, malformed ranges 400, anything
// else 500 with a generic message so internals stay out of responses.
func DomainError(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrEntryNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidMetric),
		errors.Is(err, core.ErrInvalidHorizon),
		errors.Is(err, core.ErrInsufficientHistory):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, core.ErrInvalidPeriodRange):
		return BadRequestError(err.Error())
	default:
		return InternalServerError("internal error")
	}
}
