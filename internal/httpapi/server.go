package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"librarydesk/internal/telemetry"
	"librarydesk/internal/web"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server runs the API listener and, when configured, the admin listener
// serving /metrics and /healthz.
type Server struct {
	api             *http.Server
	admin           *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a server. An empty adminAddr disables the admin listener.
func NewServer(addr string, handler http.Handler, adminAddr string, metrics *telemetry.HTTPMetrics, db Pinger, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	s := &Server{
		api: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
	if adminAddr != "" {
		s.admin = &http.Server{
			Addr:              adminAddr,
			Handler:           AdminRouter(metrics, db),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s
}

// AdminRouter serves health and metrics without the API key.
func AdminRouter(metrics *telemetry.HTTPMetrics, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "error", err)
			web.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

// Run serves until ctx is cancelled or a listener fails, then shuts both
// listeners down gracefully.
func (s *Server) Run(ctx context.Context) error {
	apiLn, err := net.Listen("tcp", s.api.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.api.Addr, err)
	}
	var adminLn net.Listener
	if s.admin != nil {
		if adminLn, err = net.Listen("tcp", s.admin.Addr); err != nil {
			apiLn.Close()
			return fmt.Errorf("listen %s: %w", s.admin.Addr, err)
		}
	}
	return s.Serve(ctx, apiLn, adminLn)
}

// Serve is Run on listeners the caller opened. adminLn may be nil.
func (s *Server) Serve(ctx context.Context, apiLn, adminLn net.Listener) error {
	errc := make(chan error, 2)

	s.logger.Info("api listening", "addr", apiLn.Addr().String())
	go func() { errc <- serve(s.api, apiLn) }()
	if adminLn != nil && s.admin != nil {
		s.logger.Info("admin listening", "addr", adminLn.Addr().String())
		go func() { errc <- serve(s.admin, adminLn) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case runErr = <-errc:
		s.logger.Error("listener failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.api.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown api: %w", err))
	}
	if s.admin != nil && adminLn != nil {
		if err := s.admin.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("shutdown admin: %w", err))
		}
	}
	return runErr
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
