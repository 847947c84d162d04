package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/http/respond"
	"github.com/hongminglow/taskkez-be/internal/models/dto"
	"github.com/hongminglow/taskkez-be/internal/profiles"
)

// UserHandler serves the /user/ representation and its partial updates.
type UserHandler struct {
	profiles  *profiles.Service
	guards    Guards
	mediaURL  string
	bodyLimit int64
	log       *zap.Logger
}

// NewUserHandler constructs the handler. bodyLimit bounds update payloads,
// which carry base64 images.
func NewUserHandler(p *profiles.Service, guards Guards, mediaURL string, bodyLimit int64, log *zap.Logger) *UserHandler {
	return &UserHandler{profiles: p, guards: guards, mediaURL: mediaURL, bodyLimit: bodyLimit, log: log}
}

func (h *UserHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.auth())
		r.Get("/user/", h.handleGet)
		r.Put("/user/", h.handleUpdate)
		r.Patch("/user/", h.handleUpdate)
	})
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	acct, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewUserResponse(acct, h.mediaURL))
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var patch profiles.Patch
	if !decodeJSON(w, r, h.bodyLimit, &patch) {
		return
	}
	acct, err := h.profiles.Update(r.Context(), userID, patch)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewUserResponse(acct, h.mediaURL))
}
