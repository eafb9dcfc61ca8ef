package maintenance

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auth-serverless/internal/observability"
)

func newTestCleanupHandler(secret string) *CleanupHandler {
	return NewCleanupHandler(nil, observability.NewLogger(), secret, 14*24*time.Hour, 30*24*time.Hour, 500)
}

func TestCleanupHiddenWithoutSecret(t *testing.T) {
	handler := newTestCleanupHandler("")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupRejectsBadAuth(t *testing.T) {
	handler := newTestCleanupHandler("cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.Handle(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCleanupRejectsOtherMethods(t *testing.T) {
	handler := newTestCleanupHandler("cron-secret")

	req := httptest.NewRequest(http.MethodDelete, "/internal/maintenance/cleanup", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
