package service

import (
	"context"
	"testing"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/internal/auth/store/drivers/sqlite"
	"github.com/edugate/edugate/pkg/cryptox"
	"github.com/edugate/edugate/pkg/idx"
	"github.com/edugate/edugate/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTokenService(t *testing.T, st store.Store) *TokenService {
	t.Helper()

	audit := &SecurityLogService{Store: st}
	return NewTokenService(st, audit, TokenConfig{
		AccessSecret:  []byte("test-access-secret-test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret-test-refresh-sec"),
		Issuer:        "edugate-auth",
		Audience:      "edugate",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
}

func createUser(t *testing.T, st store.Store, username string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword("correct-horse-1")
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Name:         "Test User",
		Role:         domain.RoleStudent,
		BranchID:     "branch-1",
		PasswordHash: hash,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))

	got, err := st.Users().GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	return got
}

func TestTokenServiceIssueAndVerify(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	u := createUser(t, st, "alice")

	pair, err := svc.Issue(ctx, u, "203.0.113.1", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, 15*time.Minute, pair.ExpiresIn)

	t.Run("access token verifies with live version", func(t *testing.T) {
		claims, err := svc.VerifyAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, claims.Subject)
		require.Equal(t, domain.RoleStudent, claims.Role)
		require.EqualValues(t, 1, claims.TokenVersion)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := svc.VerifyAccessToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := svc.VerifyRefreshToken(pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})

	t.Run("refresh fingerprint is persisted", func(t *testing.T) {
		row, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
		require.NoError(t, err)
		require.Equal(t, pair.RefreshTokenID, row.ID)
		require.Equal(t, u.ID, row.UserID)
	})

	t.Run("version bump kills outstanding access tokens", func(t *testing.T) {
		require.NoError(t, svc.RevokeAllUserTokens(ctx, u.ID))

		_, err := svc.VerifyAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})
}

func TestTokenServiceRotate(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	u := createUser(t, st, "bob")

	pair, err := svc.Issue(ctx, u, "203.0.113.2", "test-agent")
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, pair.RefreshToken, "203.0.113.2", "test-agent")
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	t.Run("old row is revoked and points at its replacement", func(t *testing.T) {
		row, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
		require.NoError(t, err)
		require.NotNil(t, row.RevokedAt)
		require.NotNil(t, row.ReplacedBy)
		require.Equal(t, rotated.RefreshTokenID, *row.ReplacedBy)
	})

	t.Run("new refresh token rotates again", func(t *testing.T) {
		again, err := svc.Rotate(ctx, rotated.RefreshToken, "203.0.113.2", "test-agent")
		require.NoError(t, err)
		require.NotEmpty(t, again.RefreshToken)
		rotated = again
	})

	t.Run("reusing a rotated token revokes every session", func(t *testing.T) {
		_, err := svc.Rotate(ctx, pair.RefreshToken, "198.51.100.9", "other-agent")
		require.ErrorIs(t, err, ErrTokenReuse)

		// The latest (legitimate) refresh token is gone too.
		_, err = svc.Rotate(ctx, rotated.RefreshToken, "203.0.113.2", "test-agent")
		require.ErrorIs(t, err, ErrTokenReuse)

		events, err := st.SecurityEvents().ListUserSecurityEvents(ctx, u.ID, u.Role, 10)
		require.NoError(t, err)
		var suspicious bool
		for _, e := range events {
			if e.EventType == domain.EventSuspiciousActivity {
				suspicious = true
			}
		}
		require.True(t, suspicious)
	})
}

func TestTokenServiceRotateRejects(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	u := createUser(t, st, "carol")

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Rotate(ctx, "not-a-jwt", "203.0.113.3", "a")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("valid signature but no persisted row", func(t *testing.T) {
		orphan, err := svc.refreshSigner.Sign(jwtx.NewRefreshClaims(u.ID, u.Role, u.TokenVersion, idx.New().String()))
		require.NoError(t, err)

		_, err = svc.Rotate(ctx, orphan, "203.0.113.3", "a")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("stale token version", func(t *testing.T) {
		pair, err := svc.Issue(ctx, u, "203.0.113.3", "a")
		require.NoError(t, err)

		_, err = st.Users().IncrementTokenVersion(ctx, u.ID)
		require.NoError(t, err)

		_, err = svc.Rotate(ctx, pair.RefreshToken, "203.0.113.3", "a")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("locked account", func(t *testing.T) {
		locked := createUser(t, st, "carol-locked")
		pair, err := svc.Issue(ctx, locked, "203.0.113.3", "a")
		require.NoError(t, err)

		until := time.Now().Add(10 * time.Minute)
		require.NoError(t, st.Users().SetLockedUntil(ctx, locked.ID, &until))

		_, err = svc.Rotate(ctx, pair.RefreshToken, "203.0.113.3", "a")
		require.ErrorIs(t, err, ErrAccountLocked)
	})
}

func TestTokenServiceRevoke(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	u := createUser(t, st, "dave")

	pair, err := svc.Issue(ctx, u, "203.0.113.4", "a")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefreshToken(ctx, pair.RefreshToken))

	// Revoking again, or revoking an unknown token, stays quiet.
	require.NoError(t, svc.RevokeRefreshToken(ctx, pair.RefreshToken))
	require.NoError(t, svc.RevokeRefreshToken(ctx, "unknown-token"))

	_, err = svc.Rotate(ctx, pair.RefreshToken, "203.0.113.4", "a")
	require.ErrorIs(t, err, ErrTokenReuse)
}
