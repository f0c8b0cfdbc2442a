package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-course-creator/internal/ai"
	"github.com/p-n-ai/pai-course-creator/internal/auth"
	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err to a status code and writes the error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, curriculum.ErrEmptyTopic):
		return http.StatusBadRequest, "Topic is required"
	case errors.Is(err, course.ErrAlreadyCertified):
		return http.StatusBadRequest, "Certificate already exists for this course"
	case errors.Is(err, course.ErrCourseIncomplete):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, course.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, course.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests, "Daily generation budget exhausted"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// decode reads a JSON body into v, rejecting oversized or malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", course.ErrInvalidInput)
	}
	return nil
}

// requireID validates that value is a UUID.
func requireID(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", course.ErrInvalidInput, name)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s is not a valid id", course.ErrInvalidInput, name)
	}
	return nil
}
