package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the error payload shared by every endpoint.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes payload as the response body.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("respond: encode payload failed", "error", err)
	}
}

// Error writes an error response with the shared body shape.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Detail: detail})
}

// Unauthorized writes a 401 with the bearer challenge header.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	Error(w, http.StatusUnauthorized, detail)
}
