package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps an error kind to an HTTP status code.
func statusForError(err error) int {
	switch {
	case errors.Is(err, facematch.ErrInputNotFound):
		return http.StatusBadRequest
	case errors.Is(err, facematch.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, facematch.ErrEmbeddingFailure), errors.Is(err, facematch.ErrDimensionMismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondRunError sends err with the status of its kind. The image name is
// included for failures tied to an image.
func respondRunError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if kind := facematch.Kind(err); kind != nil {
		body["kind"] = kind.Error()
	}
	var imgErr *facematch.ImageError
	if errors.As(err, &imgErr) {
		body["stage"] = string(imgErr.Stage)
	}
	respondJSON(w, statusForError(err), body)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
