package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/http/respond"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler returns uptime and the state of the backing services.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]Check
	log       *zap.Logger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, checks map[string]Check, log *zap.Logger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, checks: checks, log: log}
}

// Register wires the handler into the router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			body[name] = "down"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "up"
	}
	respond.JSON(w, status, body)
}
