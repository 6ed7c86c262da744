// Package middleware applies per-client rate limits to HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"brokerhub/internal/ratelimit"
	"brokerhub/internal/ratelimit/metrics"
	"brokerhub/pkg/platform/httputil"
)

// BucketStore is the counter backend.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error)
}

type Middleware struct {
	store   BucketStore
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(store BucketStore, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	mw := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
	for _, opt := range opts {
		opt(mw)
	}
	return mw
}

// Limit rejects requests once a client IP exhausts its window. Limiter
// failures let the request through; blocking signups on a broken counter
// would be worse than letting a burst in.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientIP(r)

		result, err := m.store.Allow(ctx, ip, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit check failed", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result)

		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.IncrementBlocked(r.URL.Path)
			}
			m.logger.Warn("rate limit exceeded", "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result)))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, slow down",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retryAfterSeconds(result *ratelimit.Result) int {
	secs := int(time.Until(result.ResetAt).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

func clientIP(r *http.Request) string {
	// Behind the load balancer the remote addr is the LB; trust its header.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
