package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"ourdates/internal/couple"
	"ourdates/internal/dates"
	"ourdates/internal/logging"
	"ourdates/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. Anything
// unrecognised is logged and reported as a plain 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	switch {
	case errors.Is(err, dates.ErrNoCouple), errors.Is(err, couple.ErrNoCouple):
		writeError(w, http.StatusConflict, "setup required")
	case errors.Is(err, couple.ErrAlreadyPaired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dates.ErrNotFound), errors.Is(err, couple.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, dates.ErrInvalidInput),
		errors.Is(err, couple.ErrInvalidInput),
		errors.Is(err, couple.ErrInvalidCode),
		errors.Is(err, storage.ErrNotImage),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrEmpty),
		errors.Is(err, storage.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}
