// Package middleware provides HTTP middleware shared across handlers.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"brokerhub/pkg/requestcontext"
)

// RequestIDHeader is the inbound correlation header. A missing or blank
// header gets a generated UUID.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID and the request arrival time to the
// context. Downstream code reads both via pkg/requestcontext, which keeps
// saga timestamps deterministic under test.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
