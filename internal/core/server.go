// Package core provides the API chassis for the carewatch prediction
// service: the chi router, the global middleware chain (panic recovery,
// request IDs, structured request logging, CORS), JSON request/response
// utilities, and the health surface. Domain handlers mount themselves
// onto the chassis through route registrars.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carewatch/internal/config"
)

// Server encapsulates the shared dependencies of the carewatch API,
// allowing for easy injection during testing and distinct wiring for
// different environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Model reports whether a trained model is published; the health
	// endpoint includes its flag without forcing a load. Optional.
	Model ModelStatus

	// HealthProbes are checked concurrently by the health endpoint.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain endpoints under /v1. Populated by
	// the application entry point before MountRoutes.
	V1RouteRegistrars []V1RouteRegistrar

	// closers are released on Shutdown, in registration order.
	closers []func()

	router *chi.Mux
}

// NewServer initializes the chassis and prepares the router for route
// mounting. The caller registers handlers and probes, then calls
// MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router, for use by
// http.Server and httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// RegisterCloser adds a resource teardown hook (e.g. the database pool)
// executed during Shutdown.
func (s *Server) RegisterCloser(fn func()) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases server-owned resources after the HTTP listener has
// drained. The context is accepted for symmetry with http.Server.Shutdown;
// closers are synchronous.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	for _, fn := range s.closers {
		fn()
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
