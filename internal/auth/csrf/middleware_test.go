package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/internal/auth/store/drivers/sqlite"
	"github.com/edugate/edugate/pkg/kvstore"

	"github.com/stretchr/testify/require"
)

func newMiddlewareFixture(t *testing.T, enforce bool) (*Service, http.Handler, *service.SecurityLogService) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	svc := &Service{Cache: kvstore.NewMemory()}
	audit := &service.SecurityLogService{Store: st}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return svc, Middleware(svc, audit, enforce)(ok), audit
}

func TestMiddlewareEnforced(t *testing.T) {
	svc, handler, audit := newMiddlewareFixture(t, true)
	ctx := context.Background()

	t.Run("safe methods pass without a token", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(method, "/v1/auth/password", nil))
			require.Equal(t, http.StatusNoContent, rec.Code, method)
		}
	})

	t.Run("post without token is blocked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/password", nil)
		req.RemoteAddr = "203.0.113.1:4444"
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "token missing", rec.Header().Get("X-CSRF-Error"))
		require.Contains(t, rec.Body.String(), "CSRF_INVALID")
	})

	t.Run("post with valid header token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/password", nil)
		req.RemoteAddr = "203.0.113.2:4444"

		token, err := svc.Issue(ctx, "ip:203.0.113.2")
		require.NoError(t, err)
		req.Header.Set(HeaderName, token)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("query parameter is accepted", func(t *testing.T) {
		token, err := svc.Issue(ctx, "ip:203.0.113.3")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/password?csrf_token="+token, nil)
		req.RemoteAddr = "203.0.113.3:4444"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejections are audited", func(t *testing.T) {
		n, err := audit.Store.SecurityEvents().CountEventsByTypeSince(
			ctx, domain.EventCSRFRejected, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestMiddlewareLoggingOnly(t *testing.T) {
	_, handler, audit := newMiddlewareFixture(t, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/password", nil)
	req.RemoteAddr = "203.0.113.9:4444"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// The request went through, but the rejection was recorded.
	require.Equal(t, http.StatusNoContent, rec.Code)

	n, err := audit.Store.SecurityEvents().CountEventsByTypeSince(
		context.Background(), domain.EventCSRFRejected, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
