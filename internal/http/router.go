// Package httpapi assembles the HTTP surface. Handlers stay thin and
// delegate to domain services; transport concerns live here.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brokerhub/internal/platform/metrics"
	"brokerhub/internal/platform/middleware"
	"brokerhub/pkg/platform/httputil"
)

// Registrar is implemented by every context handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router mounts. Verifier may be nil in local
// development, which leaves the authenticated routes open.
type Deps struct {
	Signup        Registrar
	Cancellation  Registrar
	Session       Registrar
	Verifier      middleware.TokenVerifier
	SignupLimiter func(http.Handler) http.Handler
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Health        func() error
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.Metrics != nil {
		r.Use(instrument(deps.Metrics))
	}

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Signup is the entry point for new customers; session events arrive
	// from the identity provider. Neither carries a user token yet.
	r.Group(func(r chi.Router) {
		if deps.SignupLimiter != nil {
			r.Use(deps.SignupLimiter)
		}
		deps.Signup.Register(r)
	})
	deps.Session.Register(r)

	r.Group(func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(middleware.RequireAuth(deps.Verifier, deps.Logger))
		}
		deps.Cancellation.Register(r)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
