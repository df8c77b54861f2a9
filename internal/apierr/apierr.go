// Package apierr defines the error taxonomy shared by the backend pipeline
// and the gateway forwarder, and the JSON error format of the HTTP surface.
// All error responses use the same body: {"error": {"code": "...", "message": "..."}}.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks a bad or missing upload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an absent index row or blob object.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateObject marks a blob key collision on write.
	ErrDuplicateObject = errors.New("duplicate object")

	// ErrInferenceUnavailable marks a failed description step.
	ErrInferenceUnavailable = errors.New("inference unavailable")

	// ErrDownstreamUnavailable marks a generic network or backend failure
	// observed by the gateway.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

// Machine-readable error codes used in response bodies.
const (
	CodeInvalidInput          = "INVALID_INPUT"
	CodeNotFound              = "NOT_FOUND"
	CodeDuplicateObject       = "DUPLICATE_OBJECT"
	CodeInferenceUnavailable  = "INFERENCE_UNAVAILABLE"
	CodeDownstreamUnavailable = "DOWNSTREAM_UNAVAILABLE"
	CodeInternalError         = "INTERNAL_ERROR"
)

// Code returns the machine-readable code for an error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateObject):
		return CodeDuplicateObject
	case errors.Is(err, ErrInferenceUnavailable):
		return CodeInferenceUnavailable
	case errors.Is(err, ErrDownstreamUnavailable):
		return CodeDownstreamUnavailable
	default:
		return CodeInternalError
	}
}

// Status maps an error to its HTTP status code: not found to 404, invalid
// input to 400, everything else to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write writes the standard JSON error response for err.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(err))
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    Code(err),
			Message: err.Error(),
		},
	})
}
