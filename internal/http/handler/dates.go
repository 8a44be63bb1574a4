package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/dates"
	"ourdates/internal/logging"

	"github.com/go-chi/chi/v5"
)

type DatesHandler struct {
	Svc *dates.Service
	Log logging.Logger
}

type createDateReq struct {
	Title       string         `json:"title"`
	Category    dates.Category `json:"category"`
	ScheduledAt time.Time      `json:"scheduled_at"`
}

func (h *DatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var req createDateReq
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.Svc.Create(r.Context(), sess, dates.CreateInput{
		Title:       req.Title,
		Category:    req.Category,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

type patchDateReq struct {
	Title       *string         `json:"title"`
	Category    *dates.Category `json:"category"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	PhotoURL    *string         `json:"photo_url"`
	Notes       *string         `json:"notes"`
	IsCompleted *bool           `json:"is_completed"`
}

func (h *DatesHandler) Patch(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var req patchDateReq
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.Svc.Update(r.Context(), sess, chi.URLParam(r, "id"), dates.UpdateInput{
		Title:       req.Title,
		Category:    req.Category,
		ScheduledAt: req.ScheduledAt,
		PhotoURL:    req.PhotoURL,
		Notes:       req.Notes,
		IsCompleted: req.IsCompleted,
	})
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type completeDateReq struct {
	Completed *bool  `json:"completed"`
	PhotoURL  string `json:"photo_url"`
	Notes     string `json:"notes"`
}

// Complete marks a date done (or undone with {"completed":false}). A photo
// URL turns it into a memory. An empty body means completed=true.
func (h *DatesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var req completeDateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	id := chi.URLParam(r, "id")

	var (
		e   dates.Entry
		err error
	)
	switch {
	case req.PhotoURL != "":
		e, err = h.Svc.CompleteWithPhoto(r.Context(), sess, id, req.PhotoURL, req.Notes)
	case req.Completed != nil:
		e, err = h.Svc.ToggleComplete(r.Context(), sess, id, *req.Completed)
	default:
		e, err = h.Svc.ToggleComplete(r.Context(), sess, id, true)
	}
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *DatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	if err := h.Svc.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
