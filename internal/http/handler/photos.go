package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"ourdates/internal/auth"
	"ourdates/internal/logging"
	"ourdates/internal/storage"
)

// PhotoStore is the object storage the handlers upload to.
type PhotoStore interface {
	Upload(ctx context.Context, owner, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
	KeyFromURL(url string) (string, error)
}

type PhotosHandler struct {
	Photos PhotoStore
	Log    logging.Logger
}

// Upload stores the multipart "file" under the couple's prefix and returns
// its public URL. Attaching it to a date is a separate PATCH or complete.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	url, ok := uploadFormFile(w, r, h.Photos, sess.CoupleID, h.Log)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

type deletePhotoReq struct {
	URL string `json:"url"`
}

func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var req deletePhotoReq
	if !decodeJSON(w, r, &req) {
		return
	}
	// only objects under this couple's prefix
	key, err := h.Photos.KeyFromURL(req.URL)
	if err != nil || !storage.OwnedBy(key, sess.CoupleID) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := h.Photos.Delete(r.Context(), req.URL); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func uploadFormFile(w http.ResponseWriter, r *http.Request, photos PhotoStore, owner string, log logging.Logger) (string, bool) {
	// room for the multipart envelope on top of the image itself
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxPhotoSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusBadRequest, storage.ErrTooLarge.Error())
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, storage.ErrEmpty.Error())
		default:
			writeError(w, http.StatusBadRequest, "bad multipart form")
		}
		return "", false
	}
	defer file.Close()

	url, err := photos.Upload(r.Context(), owner, header.Filename, file)
	if err != nil {
		writeServiceError(w, r, log, err)
		return "", false
	}
	return url, true
}
