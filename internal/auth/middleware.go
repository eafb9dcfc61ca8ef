package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
)

type contextKey string

const identityContextKey contextKey = "auth.identity"

// Middleware guards a route with access-token verification, including
// the revocation check, and stores the resolved identity in the
// request context.
func Middleware(service *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		summary, err := service.CurrentIdentity(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if errors.Is(err, ErrStoreUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "authorization failed")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the identity Middleware stored, if any.
func IdentityFromContext(ctx context.Context) (AccountSummary, bool) {
	summary, ok := ctx.Value(identityContextKey).(AccountSummary)
	return summary, ok
}
