// Package httputil holds the JSON envelope helpers the API handlers
// share. Success bodies are the caller's own shape; errors always use
// ErrorResponse, so clients parse one failure format across every
// endpoint.
package httputil
