package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/imaging"
	"github.com/kozaktomas/face-matcher/internal/runner"
	"github.com/kozaktomas/face-matcher/internal/vision"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

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

// statusForError maps pipeline and storage errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, runner.ErrNoFaceDetected),
		errors.Is(err, facematch.ErrMissingKeypoints),
		errors.Is(err, facematch.ErrEmptyCrop),
		errors.Is(err, imaging.ErrDecodeFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, facematch.ErrUnsupportedMetric),
		errors.Is(err, database.ErrInvalidNamespace):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vision.ErrExtractionFailure),
		errors.Is(err, vision.ErrDetectionFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondFailure logs err and answers with the mapped status. Internal errors are not echoed.
func respondFailure(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "status", status)
	} else {
		logger.Info("request rejected", "error", err, "status", status)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondError(w, status, message)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
