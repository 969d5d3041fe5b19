// Package response writes the API's JSON bodies.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Client-facing error messages.
const (
	MessageMissingInput     = "Missing input"
	MessageInvalidBody      = "Invalid request body"
	MessageBodyTooLarge     = "Request body too large"
	MessageInvalidEmbedding = "Invalid embedding"
	MessageInternalError    = "Internal server error"
	MessageNotFound         = "Not found"
	MessageMethodNotAllowed = "Method not allowed"
)

// ErrorBody is the body of every error response: {"error": "..."}.
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondError writes {"error": message} with the given status.
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	RespondJSON(w, statusCode, ErrorBody{Error: message})
}

// RespondBadRequest writes a 400 error response.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, message)
}

// RespondInternalServerError writes a 500 error response.
func RespondInternalServerError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, message)
}

// RespondJSON writes a JSON response directly without wrapping
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
