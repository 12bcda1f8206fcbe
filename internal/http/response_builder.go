// Package http provides the JSON API server and handler implementations.
//
// This file implements the Builder Pattern for constructing API responses.
// It provides a type-safe, fluent API for consistent status codes, headers
// and JSON bodies.

package http

import (
	"encoding/json"
	"net/http"
)

// APIResponseBuilder provides a fluent API for building JSON responses.
type APIResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewAPIResponse creates a new response builder with default 200 status.
func NewAPIResponse() *APIResponseBuilder {
	return &APIResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *APIResponseBuilder) Status(code int) *APIResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *APIResponseBuilder) Header(name, value string) *APIResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the response body to the JSON encoding of v.
// Encoding failures degrade to a 500 with a generic body rather than a panic.
func (b *APIResponseBuilder) JSON(v any) *APIResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"response encoding failed"}`)
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = data
	return b
}

// Body sets the response body as raw bytes.
func (b *APIResponseBuilder) Body(content []byte) *APIResponseBuilder {
	b.body = content
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *APIResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorBody is the uniform error envelope for all non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *APIResponseBuilder {
	return NewAPIResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *APIResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *APIResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *APIResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *APIResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *APIResponseBuilder {
	return NewAPIResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
