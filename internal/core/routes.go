package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carewatch/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// Predictions are short synchronous computations; the generous ceiling
// exists for the cold-start case where the first request also loads the
// model artifacts.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs. The service itself has no auth surface, but gateways in
// front of it may attach credentials that must not reach the logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes defines the top-level routing hierarchy: the global
// middleware chain, the /v1 API group, and the unversioned health probe.
func (s *Server) MountRoutes() {
	// Global middleware registration (strict order matters).
	s.registerGlobalMiddleware()

	// API version groups.
	s.router.Route("/v1", s.mountV1)

	// The liveness probe lives outside /v1 so orchestration configs
	// survive API version bumps.
	s.router.Get("/healthz", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer      - catches panics; outermost to catch all failures.
//  2. ContextTimeout - soft deadline before the HTTP server write timeout.
//  3. RequestID      - generates/propagates the correlation ID.
//  4. SecurityHeaders- ensures all responses carry security headers.
//  5. RequestLogger  - structured logging (redacted headers).
//  6. CORS           - browser access for dashboard clients.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
}

// mountV1 registers all v1 endpoints through the registrars populated by
// the application entry point. The indirection avoids import cycles
// between core and the handler packages.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

// corsAllowedOrigins returns the CORS allowed origins. The dashboard is
// served from the same deployment in every current environment, so the
// permissive default stands until config grows an origin list.
func (s *Server) corsAllowedOrigins() []string {
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context.
// Downstream handlers receive a cancelled context when it expires; the
// response is controlled by the handler's behavior on cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. If the incoming request carries an
// X-Request-Id header that value is reused; otherwise a new random ID is
// generated. The ID is stored in the context via types.WithRequestID and
// echoed on the response for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string
// suitable for use as a request correlation ID: 16 random bytes encoded
// as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: this should never happen in practice. If crypto/rand
		// fails, we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
