package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthReport is the /healthz body.
type HealthReport struct {
	Status string            `json:"status"` // ok|degraded|down
	Checks map[string]string `json:"checks"`
}

// NewAdminRouter serves /healthz and /metrics.
//
// The database is required: when it fails the status is "down" with 503.
// Redis is optional: the engine degrades without it, so a failing Redis is
// reported as "degraded" with 200.
func NewAdminRouter(database, redis Pinger, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		report := HealthReport{Status: "ok", Checks: map[string]string{}}
		code := http.StatusOK

		if err := database.Ping(ctx); err != nil {
			report.Status, code = "down", http.StatusServiceUnavailable
			report.Checks["database"] = err.Error()
		} else {
			report.Checks["database"] = "ok"
		}

		if redis == nil {
			report.Checks["redis"] = "disabled"
		} else if err := redis.Ping(ctx); err != nil {
			if report.Status == "ok" {
				report.Status = "degraded"
			}
			report.Checks["redis"] = err.Error()
		} else {
			report.Checks["redis"] = "ok"
		}

		if report.Status != "ok" {
			log.Warn("health check not ok", "status", report.Status, "checks", report.Checks)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server as a supervised service.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve returns nil on graceful shutdown and an error if the server fails.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "admin-http" }
