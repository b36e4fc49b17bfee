// Package http exposes the fintrack services as a JSON API.
//
// This file implements the builder used by every handler to write
// responses, and the mapping from service errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	data        any
	raw         []byte
	contentType string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode:  http.StatusOK,
		headers:     make(map[string]string),
		contentType: "application/json",
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Raw sends body as-is with the given content type.
func (b *JSONResponseBuilder) Raw(contentType string, body []byte) *JSONResponseBuilder {
	b.contentType = contentType
	b.raw = body
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.raw
	if body == nil && b.data != nil {
		encoded, err := json.Marshal(b.data)
		if err != nil {
			http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
			return
		}
		body = append(encoded, '\n')
	}
	if len(body) > 0 {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// errorMapping is the outcome of classifying a service error.
type errorMapping struct {
	status    int
	body      ErrorBody
	errorType string
}

// classifyError maps the service error taxonomy onto HTTP. Messages of
// unexpected failures are never echoed to the client.
func classifyError(err error) errorMapping {
	var (
		validation  *core.ValidationError
		consistency *core.ConsistencyError
		collab      *core.CollaboratorError
	)
	switch {
	case errors.As(err, &validation):
		return errorMapping{
			status:    http.StatusUnprocessableEntity,
			body:      ErrorBody{Error: validation.Error(), Field: validation.Field},
			errorType: applog.ErrorTypeValidation,
		}
	case errors.Is(err, errMalformedBody):
		return errorMapping{
			status:    http.StatusBadRequest,
			body:      ErrorBody{Error: err.Error()},
			errorType: applog.ErrorTypeValidation,
		}
	case errors.Is(err, core.ErrNotFound):
		return errorMapping{
			status:    http.StatusNotFound,
			body:      ErrorBody{Error: err.Error()},
			errorType: applog.ErrorTypeNotFound,
		}
	case errors.Is(err, core.ErrForbidden):
		return errorMapping{
			status:    http.StatusForbidden,
			body:      ErrorBody{Error: "forbidden"},
			errorType: applog.ErrorTypeForbidden,
		}
	case errors.As(err, &consistency) && errors.Is(err, core.ErrConflict):
		return errorMapping{
			status:    http.StatusConflict,
			body:      ErrorBody{Error: "concurrent update, please retry"},
			errorType: applog.ErrorTypeConflict,
		}
	case errors.As(err, &collab):
		return errorMapping{
			status:    http.StatusBadGateway,
			body:      ErrorBody{Error: collab.Collaborator + " unavailable"},
			errorType: applog.ErrorTypeCollaborator,
		}
	default:
		return errorMapping{
			status:    http.StatusInternalServerError,
			body:      ErrorBody{Error: "internal error"},
			errorType: applog.ErrorTypeInternal,
		}
	}
}
