package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/config"
	"github.com/hongminglow/taskkez-be/internal/http/handlers"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/middleware"
	"github.com/hongminglow/taskkez-be/internal/profiles"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Accounts *accounts.Service
	Profiles *profiles.Service
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Checks   map[string]handlers.Check
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, d Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// NewRouter builds the route tree.
func NewRouter(cfg config.Config, d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(d.Metrics))

	guards := handlers.Guards{
		Auth:     middleware.RequireAuth(d.Accounts),
		Throttle: middleware.RateLimit(middleware.NewMapLimiter(cfg.LoginRatePerMinute, 10*time.Minute)),
	}
	// base64 inflates images by a third; leave room for two ID images and a picture.
	bodyLimit := cfg.MaxUploadBytes*4 + 64<<10

	handlers.NewHealthHandler(time.Now(), d.Checks, log).Register(r)
	handlers.NewAuthHandler(d.Accounts, guards, log).Register(r)
	handlers.NewPasswordHandler(d.Accounts, guards, log).Register(r)
	handlers.NewUserHandler(d.Profiles, guards, cfg.MediaURL, bodyLimit, log).Register(r)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
