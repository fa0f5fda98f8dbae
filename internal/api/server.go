// Package api exposes the chat, classification and upload services over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/spice-insights/internal/identity"
	"github.com/Veraticus/spice-insights/internal/observability"
	"github.com/Veraticus/spice-insights/internal/service"
)

// Config controls the listener.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxUploadBytes: 32 << 20,
	}
}

// Deps are the services behind the routes.
type Deps struct {
	Chat     Asker
	Jobs     JobQueue
	Uploads  Uploader
	Expenses service.ExpenseStorage
	Verifier identity.Verifier
	// Ping reports storage health. Nil means always healthy.
	Ping    func(ctx context.Context) error
	Logger  *slog.Logger
	Version string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  Config
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	handler := NewHandler(deps, cfg.MaxUploadBytes)
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.RealIP)
	router.Use(observability.TracingMiddleware)
	router.Use(observability.LoggingMiddleware(deps.Logger))
	router.Use(observability.MetricsMiddleware)

	router.Get("/health", handler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Verifier))

		r.Post("/chatbot", handler.Chat)

		r.Post("/classify", handler.Classify)
		r.Get("/jobs", handler.ListJobs)
		r.Get("/jobs/{id}", handler.GetJob)

		r.Post("/file/upload", handler.Upload)
		r.Get("/file/history", handler.History)

		r.Get("/expenses", handler.ListExpenses)
		r.Patch("/expenses/{id}", handler.UpdateExpense)
	})

	s := &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
	s.server = s.newHTTPServer()
	return s
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// StartTLS is Start over HTTPS with the certificates in tlsConfig.
func (s *Server) StartTLS(tlsConfig *tls.Config) error {
	s.server.TLSConfig = tlsConfig
	return s.server.ListenAndServeTLS("", "")
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
