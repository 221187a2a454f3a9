// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Error kinds used in the "error" field of error responses.
const (
	ErrValidation   = "validation_error"
	ErrNotFound     = "not_found"
	ErrImportFormat = "import_format_error"
	ErrInvalidJSON  = "invalid_json"
	ErrInternal     = "internal_error"
	ErrNoMatch      = "no_match"
	ErrScript       = "script_error"
	ErrBodyTooLarge = "body_too_large"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	WriteJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// WriteFieldError writes an error response that names the offending field.
func WriteFieldError(w http.ResponseWriter, status int, kind, field, message string) {
	WriteJSON(w, status, ErrorResponse{Error: kind, Message: message, Field: field})
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteCreated writes a 201 Created response with the created resource.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrNotFound, message)
}

// WriteInternalError writes a 500 response with a generic message. Details
// belong in the server log, not the response.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, ErrInternal, "internal server error")
}
