package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoginRateLimiterAllow(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.allow("10.0.0.1", now)
		require.True(t, allowed)
	}

	allowed, retryAfter := limiter.allow("10.0.0.1", now)
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))

	// Other clients are unaffected.
	allowed, _ = limiter.allow("10.0.0.2", now)
	require.True(t, allowed)

	// Attempts age out of the window.
	allowed, _ = limiter.allow("10.0.0.1", now.Add(2*time.Minute))
	require.True(t, allowed)
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	wrapped := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginRateLimiterTrustsForwardedFor(t *testing.T) {
	limiter := NewLoginRateLimiter(1, time.Minute)
	wrapped := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, second)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNewLoginRateLimiterDefaults(t *testing.T) {
	limiter := NewLoginRateLimiter(0, 0)
	require.Equal(t, 10, limiter.maxAttempts)
	require.Equal(t, time.Minute, limiter.window)
}
