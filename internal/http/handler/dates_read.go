package handler

import (
	"net/http"
	"strings"

	"ourdates/internal/auth"
	"ourdates/internal/dates"
	"ourdates/internal/logging"
)

type DatesReadHandler struct {
	Svc *dates.Service
	Log logging.Logger
}

// List serves the snapshot: ?view=all|upcoming|completed and an optional
// ?month=YYYY-MM.
func (h *DatesReadHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	view, ok := dates.ParseView(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("view"))))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid view")
		return
	}

	out, err := h.Svc.List(r.Context(), sess, dates.ListQuery{
		View:  view,
		Month: strings.TrimSpace(r.URL.Query().Get("month")),
	})
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DatesReadHandler) Months(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	out, err := h.Svc.Months(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
