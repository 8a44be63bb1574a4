package handler

import (
	"errors"
	"net/http"
	"strings"

	"ourdates/internal/auth"
	"ourdates/internal/logging"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type AuthHandler struct {
	DB  *gorm.DB
	JWT *auth.JWT
	Log logging.Logger
}

type registerReq struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=60"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}

	u := auth.User{Email: req.Email, PasswordHash: hash, DisplayName: req.DisplayName}
	if err := h.DB.WithContext(r.Context()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already used")
			return
		}
		writeServiceError(w, r, h.Log, err)
		return
	}

	h.writeToken(w, r, http.StatusCreated, u.ID)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("email = ?", req.Email).First(&u).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.writeToken(w, r, http.StatusOK, u.ID)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, status int, uid uint64) {
	token, err := h.JWT.Sign(uid)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, status, map[string]any{"token": token})
}

// isUniqueViolation covers drivers that gorm does not translate without
// TranslateError.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
