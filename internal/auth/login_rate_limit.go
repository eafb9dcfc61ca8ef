package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles login requests per client IP before they
// reach the session manager. It is transport plumbing only: account
// lockout is handled separately by the attempt guard.
type LoginRateLimiter struct {
	mu           sync.Mutex
	maxAttempts  int
	window       time.Duration
	attemptsByIP map[string][]time.Time
	maxKeys      int
}

func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxAttempts:  maxAttempts,
		window:       window,
		attemptsByIP: make(map[string][]time.Time),
		maxKeys:      5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()

		allowed, retryAfter := l.allow(clientIP(r), now)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := make([]time.Time, 0, len(l.attemptsByIP[ip])+1)
	for _, at := range l.attemptsByIP[ip] {
		if at.After(threshold) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= l.maxAttempts {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.attemptsByIP[ip] = recent
		return false, retryAfter
	}

	l.attemptsByIP[ip] = append(recent, now)

	// Bounded memory: drop idle keys once the map grows too large.
	if len(l.attemptsByIP) > l.maxKeys {
		for key, attempts := range l.attemptsByIP {
			if len(attempts) == 0 || attempts[len(attempts)-1].Before(threshold) {
				delete(l.attemptsByIP, key)
			}
		}
	}

	return true, 0
}

func clientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
