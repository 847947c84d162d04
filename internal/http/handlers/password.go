package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/http/respond"
	"github.com/hongminglow/taskkez-be/internal/middleware"
	"github.com/hongminglow/taskkez-be/internal/models/dto"
)

// PasswordHandler serves password reset and change.
type PasswordHandler struct {
	accounts *accounts.Service
	guards   Guards
	log      *zap.Logger
}

func NewPasswordHandler(acc *accounts.Service, guards Guards, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{accounts: acc, guards: guards, log: log}
}

// Register attaches password routes to the router.
func (h *PasswordHandler) Register(r chi.Router) {
	r.With(h.guards.throttle()).Post("/password/reset/", h.handleReset)
	r.Post("/password/reset/confirm/{uid}/{token}/", h.handleResetConfirm)
	r.With(h.guards.auth()).Post("/password/change/", h.handleChange)
}

func (h *PasswordHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case err == nil:
		respond.Detail(w, http.StatusOK, "Password reset has been sent.")
	case errors.Is(err, errs.ErrNotFound):
		respond.Detail(w, http.StatusNotAcceptable, accounts.MsgUnknownEmail)
	default:
		respond.Error(w, h.log, err)
	}
}

func (h *PasswordHandler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetConfirmRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	err := h.accounts.ConfirmPasswordReset(r.Context(), accounts.ResetConfirmInput{
		UID:          chi.URLParam(r, "uid"),
		Token:        chi.URLParam(r, "token"),
		NewPassword1: req.NewPassword1,
		NewPassword2: req.NewPassword2,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.Detail(w, http.StatusOK, "Password has been reset with the new password.")
}

func (h *PasswordHandler) handleChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.PasswordChangeRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	err := h.accounts.ChangePassword(r.Context(), userID, accounts.ChangePasswordInput{
		OldPassword:  req.OldPassword,
		NewPassword1: req.NewPassword1,
		NewPassword2: req.NewPassword2,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.Detail(w, http.StatusOK, "New password has been Changed.")
}

// currentUser resolves the authenticated user id or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respond.Detail(w, http.StatusUnauthorized, middleware.MsgNoCredentials)
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		respond.Detail(w, http.StatusUnauthorized, middleware.MsgInvalidToken)
		return 0, false
	}
	return id, true
}
