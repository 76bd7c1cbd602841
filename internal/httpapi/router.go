// Package httpapi composes the domain handlers behind the shared middleware
// chain and runs the API and admin listeners.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"librarydesk/internal/activity"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"
	"librarydesk/internal/telemetry"
	"librarydesk/internal/web"
)

const (
	msgRouteNotFound    = "Route not found"
	msgMethodNotAllowed = "Method not allowed"
)

// Services are the domain services the API exposes.
type Services struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
	Activity    *activity.Log
}

// Options configures the middleware chain.
type Options struct {
	APIKey          string
	AllowedOrigins  []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	Logger          *slog.Logger
	// Metrics is optional.
	Metrics *telemetry.HTTPMetrics
}

// NewRouter builds the API handler. Middleware runs in the order: request id,
// recover, metrics, access log, security headers, CORS, rate limit, API key.
func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(AccessLog(logger))
	r.Use(SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerAPIKey, headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}))
	r.Use(NewRateLimiter(opts.RateLimitWindow, opts.RateLimitMax).Middleware)
	r.Use(APIKey(opts.APIKey))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		web.Message(w, http.StatusNotFound, msgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		web.Message(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	catalog.NewHandler(svc.Catalog, logger).Routes(r)
	membership.NewHandler(svc.Membership, logger).Routes(r)
	circulation.NewHandler(svc.Circulation, logger).Routes(r)
	activity.NewHandler(svc.Activity, logger).Routes(r)

	return r
}
