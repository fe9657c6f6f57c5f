// Package http serves the JSON API.
//
// This file implements a small fluent builder for JSON responses so every
// handler answers with the same content type, status handling and error
// body shape.
package http

import (
	"encoding/json"
	"net/http"

	"gota/internal/core"
)

// ResponseBuilder accumulates status, headers and a body before writing.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	hasPayload bool
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value marshaled as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.hasPayload = true
	return b
}

// Write sends the built response. A 204 never carries a body.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if !b.hasPayload || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + msgInternal + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// errorBody is the shape of every non-2xx JSON response.
type errorBody struct {
	Error   string                `json:"error"`
	Fields  []core.FieldError     `json:"fields,omitempty"`
	DraftID string                `json:"draft_id,omitempty"`
	Matches []core.DuplicateMatch `json:"matches,omitempty"`
}

// ErrorResponse creates a JSON error response with a user-facing message.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError() *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, msgNotFound)
}

func UnauthorizedError() *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, msgUnauthorized)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, msgInternal)
}

// ValidationErrorResponse lists every rejected field.
func ValidationErrorResponse(verr *core.ValidationError) *ResponseBuilder {
	return NewResponse().Status(http.StatusBadRequest).JSON(errorBody{
		Error:  msgValidation,
		Fields: verr.Fields,
	})
}
