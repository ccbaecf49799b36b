package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the error envelope every endpoint returns on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status. An encode failure is logged;
// the status line has already gone out by then.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

// OK writes a 200 with the given body.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 with the given body.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an ErrorResponse with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError logs the underlying error and returns a generic 500;
// internals never reach the client.
func InternalError(w http.ResponseWriter, err error) {
	log.Printf("[HTTP] internal error: %v", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Decode unmarshals the request body into dst. On malformed JSON it
// writes the 400 itself and returns false so handlers can bail with a
// bare return.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
