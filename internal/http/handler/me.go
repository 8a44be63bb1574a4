package handler

import (
	"net/http"

	"ourdates/internal/auth"
	"ourdates/internal/logging"

	"gorm.io/gorm"
)

type MeHandler struct {
	DB  *gorm.DB
	Log logging.Logger
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("id = ?", uid).First(&u).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      u.ID,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"couple_id":    u.CoupleID,
	})
}
