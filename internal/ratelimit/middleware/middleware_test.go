package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerhub/internal/ratelimit"
	"brokerhub/internal/ratelimit/store/bucket"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func get(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/signup", nil)
	req.RemoteAddr = ip + ":4567"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAllowsUnderLimit(t *testing.T) {
	mw := New(bucket.NewInMemoryBucketStore(), 2, time.Minute, slog.Default())
	handler := mw.Limit(okHandler())

	rec := get(handler, "1.2.3.4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestBlocksOverLimit(t *testing.T) {
	mw := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, slog.Default())
	handler := mw.Limit(okHandler())

	require.Equal(t, http.StatusOK, get(handler, "1.2.3.4").Code)

	rec := get(handler, "1.2.3.4")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client is unaffected.
	assert.Equal(t, http.StatusOK, get(handler, "5.6.7.8").Code)
}

func TestPrefersForwardedHeader(t *testing.T) {
	mw := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, slog.Default())
	handler := mw.Limit(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/signup", nil)
		req.RemoteAddr = "10.0.0.1:4567" // the load balancer
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*ratelimit.Result, error) {
	return nil, errors.New("backend down")
}

func TestFailsOpen(t *testing.T) {
	mw := New(failingStore{}, 1, time.Minute, slog.Default())
	handler := mw.Limit(okHandler())

	assert.Equal(t, http.StatusOK, get(handler, "1.2.3.4").Code)
	assert.Equal(t, http.StatusOK, get(handler, "1.2.3.4").Code)
}
