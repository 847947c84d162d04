package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/http/respond"
	"github.com/hongminglow/taskkez-be/internal/middleware"
	"github.com/hongminglow/taskkez-be/internal/models/dto"
)

// AuthHandler owns registration, login/logout and email verification endpoints.
type AuthHandler struct {
	accounts *accounts.Service
	guards   Guards
	log      *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(acc *accounts.Service, guards Guards, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: acc, guards: guards, log: log}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/registration/", h.handleRegister)
	r.Post("/registration/resend-email/", h.handleResend)
	r.Post("/registration/verify-email/", h.handleVerifyEmail)
	r.Get("/account-confirm-email/{key}/", h.handleConfirmKey)
	r.Post("/account-confirm-email/{key}/", h.handleConfirmKey)
	r.With(h.guards.throttle()).Post("/login/", h.handleLogin)
	r.With(h.guards.auth()).Post("/logout/", h.handleLogout)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	reg, err := h.accounts.Register(r.Context(), accounts.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password1:   req.Password1,
		Password2:   req.Password2,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		AcceptTerms: req.AcceptTerms,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, dto.LoginResponse{Token: reg.AccessToken, User: reg.User})
}

func (h *AuthHandler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	if err := h.accounts.RequestEmailVerification(r.Context(), req.Email); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.Detail(w, http.StatusOK, "ok")
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	h.confirm(w, r, req.Key)
}

func (h *AuthHandler) handleConfirmKey(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, chi.URLParam(r, "key"))
}

func (h *AuthHandler) confirm(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.accounts.ConfirmEmail(r.Context(), key); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.Detail(w, http.StatusOK, "ok")
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, 0, &req) {
		return
	}
	session, err := h.accounts.Login(r.Context(), accounts.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.LoginResponse{Token: session.AccessToken, User: session.User})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respond.Detail(w, http.StatusUnauthorized, middleware.MsgNoCredentials)
		return
	}
	if err := h.accounts.Logout(r.Context(), claims); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.Detail(w, http.StatusOK, "Successfully logged out.")
}
