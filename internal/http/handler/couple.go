package handler

import (
	"net/http"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/couple"
	"ourdates/internal/logging"
)

type CoupleHandler struct {
	Svc    *couple.Service
	Photos PhotoStore
	Log    logging.Logger
}

type createCoupleReq struct {
	DisplayName     string `json:"display_name"`
	AnniversaryDate string `json:"anniversary_date"` // YYYY-MM-DD
}

func (h *CoupleHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createCoupleReq
	if !decodeJSON(w, r, &req) {
		return
	}
	anniversary, err := time.Parse(time.DateOnly, req.AnniversaryDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid anniversary_date (YYYY-MM-DD)")
		return
	}

	code, err := h.Svc.Create(r.Context(), uid, couple.CreateInput{
		DisplayName:     req.DisplayName,
		AnniversaryDate: anniversary,
	})
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"code": code})
}

type joinCoupleReq struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

func (h *CoupleHandler) Join(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req joinCoupleReq
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.Join(r.Context(), uid, req.Code, req.DisplayName); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": couple.NormalizeCode(req.Code)})
}

func (h *CoupleHandler) Info(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	info, err := h.Svc.Info(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SetPhoto uploads the multipart "file" and makes it the couple photo.
func (h *CoupleHandler) SetPhoto(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	url, ok := uploadFormFile(w, r, h.Photos, sess.CoupleID, h.Log)
	if !ok {
		return
	}

	if err := h.Svc.SetPhoto(r.Context(), sess, url); err != nil {
		// the object is unreferenced now
		if derr := h.Photos.Delete(r.Context(), url); derr != nil {
			h.Log.Warn(r.Context(), "orphaned upload", "url", url, "err", derr)
		}
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (h *CoupleHandler) ClearPhoto(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	if err := h.Svc.ClearPhoto(r.Context(), sess); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
