// Package httpjson writes JSON responses and the API error envelope.
package httpjson

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the envelope for every failed API request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Write encodes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response.", "error", err)
	}
}

// Error writes the error envelope. details is omitted when nil.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	Write(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}
