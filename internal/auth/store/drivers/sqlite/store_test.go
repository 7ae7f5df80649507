package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/idx"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedUser(t *testing.T, s *Store, username, role string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Name:         "Test User",
		Role:         role,
		BranchID:     "branch-1",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))

	got, err := s.Users().GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	return got
}

func TestUsersRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		u := seedUser(t, s, "alice", domain.RoleStudent)
		require.Equal(t, "alice", u.Username)
		require.EqualValues(t, 1, u.TokenVersion)
		require.Nil(t, u.LockedUntil)

		byID, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.ID, byID.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		seedUser(t, s, "bob", domain.RoleTeacher)
		err := s.Users().CreateUser(ctx, domain.User{
			ID:           idx.New().String(),
			Username:     "bob",
			Role:         domain.RoleTeacher,
			PasswordHash: "x",
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Users().GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment token version", func(t *testing.T) {
		u := seedUser(t, s, "carol", domain.RoleParent)

		v, err := s.Users().IncrementTokenVersion(ctx, u.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, v)

		v, err = s.Users().IncrementTokenVersion(ctx, u.ID)
		require.NoError(t, err)
		require.EqualValues(t, 3, v)

		_, err = s.Users().IncrementTokenVersion(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lockout round trip", func(t *testing.T) {
		u := seedUser(t, s, "dave", domain.RoleStudent)

		until := time.Now().UTC().Add(15 * time.Minute)
		require.NoError(t, s.Users().SetLockedUntil(ctx, u.ID, &until))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LockedUntil)
		require.True(t, got.Locked(time.Now()))

		require.NoError(t, s.Users().SetLockedUntil(ctx, u.ID, nil))
		got, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Nil(t, got.LockedUntil)
	})

	t.Run("update password hash", func(t *testing.T) {
		u := seedUser(t, s, "erin", domain.RoleAdmin)
		require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "newhash"))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "newhash", got.PasswordHash)

		require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, "missing", "h"), store.ErrNotFound)
	})
}

func TestRefreshTokensRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "frank", domain.RoleStudent)

	newToken := func(hash string) domain.RefreshToken {
		return domain.RefreshToken{
			ID:        idx.New().String(),
			TokenHash: hash,
			UserID:    u.ID,
			UserRole:  u.Role,
			IPAddress: "203.0.113.9",
			UserAgent: "test-agent",
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
	}

	t.Run("create and fetch by hash", func(t *testing.T) {
		tok := newToken("hash-1")
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
		require.NoError(t, err)
		require.Equal(t, tok.ID, got.ID)
		require.Equal(t, u.ID, got.UserID)
		require.Nil(t, got.RevokedAt)
		require.Nil(t, got.ReplacedBy)
		require.True(t, got.Active(time.Now()))
	})

	t.Run("revoke records replacement", func(t *testing.T) {
		tok := newToken("hash-2")
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash-2", "next-id"))

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-2")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		require.NotNil(t, got.ReplacedBy)
		require.Equal(t, "next-id", *got.ReplacedBy)
		require.False(t, got.Active(time.Now()))

		// Already revoked: the guarded update touches no rows.
		require.ErrorIs(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash-2", ""), store.ErrNotFound)
	})

	t.Run("revoke all for user", func(t *testing.T) {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, newToken("hash-3")))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, newToken("hash-4")))
		require.NoError(t, s.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID))

		for _, hash := range []string{"hash-3", "hash-4"} {
			got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
			require.NoError(t, err)
			require.NotNil(t, got.RevokedAt)
		}
	})

	t.Run("delete expired", func(t *testing.T) {
		expired := newToken("hash-expired")
		expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, expired))

		require.NoError(t, s.RefreshTokens().DeleteExpiredRefreshTokens(ctx))

		_, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-expired")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSecurityEventsRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert := func(t *testing.T, e domain.SecurityEvent) {
		t.Helper()
		if e.ID == "" {
			e.ID = idx.New().String()
		}
		require.NoError(t, s.SecurityEvents().InsertSecurityEvent(ctx, e))
	}

	t.Run("insert and list by user", func(t *testing.T) {
		insert(t, domain.SecurityEvent{
			UserID:      "u1",
			UserRole:    domain.RoleStudent,
			EventType:   domain.EventLoginSuccess,
			EventStatus: domain.StatusSuccess,
			IPAddress:   "198.51.100.7",
			Metadata:    map[string]any{"session": "abc"},
		})
		insert(t, domain.SecurityEvent{
			UserID:      "u1",
			UserRole:    domain.RoleStudent,
			EventType:   domain.EventLogout,
			EventStatus: domain.StatusSuccess,
		})

		events, err := s.SecurityEvents().ListUserSecurityEvents(ctx, "u1", domain.RoleStudent, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)

		var found bool
		for _, e := range events {
			if e.EventType == domain.EventLoginSuccess {
				found = true
				require.Equal(t, "abc", e.Metadata["session"])
			}
		}
		require.True(t, found)
	})

	t.Run("anonymous actor stored as null", func(t *testing.T) {
		insert(t, domain.SecurityEvent{
			EventType:   domain.EventLoginFailed,
			EventStatus: domain.StatusFailure,
			IPAddress:   "198.51.100.8",
			Details:     "unknown username",
		})

		events, err := s.SecurityEvents().ListRecentFailedLogins(ctx, 5)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		require.Equal(t, "", events[0].UserID)
	})

	t.Run("windowed counts", func(t *testing.T) {
		since := time.Now().Add(-time.Minute)
		for i := 0; i < 3; i++ {
			insert(t, domain.SecurityEvent{
				EventType:   domain.EventAccountLocked,
				EventStatus: domain.StatusWarning,
				IPAddress:   "203.0.113.50",
			})
		}

		n, err := s.SecurityEvents().CountEventsByTypeSince(ctx, domain.EventAccountLocked, since)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		n, err = s.SecurityEvents().CountEventsByStatusSince(ctx, domain.StatusWarning, since)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		n, err = s.SecurityEvents().CountEventsByTypeSince(ctx, domain.EventAccountLocked, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("per-ip aggregation honors threshold", func(t *testing.T) {
		since := time.Now().Add(-time.Minute)
		for i := 0; i < 4; i++ {
			insert(t, domain.SecurityEvent{
				EventType:   domain.EventLoginFailed,
				EventStatus: domain.StatusFailure,
				IPAddress:   "192.0.2.77",
			})
		}

		counts, err := s.SecurityEvents().CountEventsByIPSince(ctx, since, 4)
		require.NoError(t, err)
		require.Equal(t, 4, counts["192.0.2.77"])

		counts, err = s.SecurityEvents().CountEventsByIPSince(ctx, since, 100)
		require.NoError(t, err)
		require.Empty(t, counts)
	})

	t.Run("retention delete", func(t *testing.T) {
		require.NoError(t, s.SecurityEvents().DeleteSecurityEventsBefore(ctx, time.Now().Add(time.Hour)))

		events, err := s.SecurityEvents().ListRecentFailedLogins(ctx, 5)
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestWithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, domain.User{
				ID:           idx.New().String(),
				Username:     "txuser",
				Role:         domain.RoleStudent,
				PasswordHash: "x",
			})
		})
		require.NoError(t, err)

		_, err = s.Users().GetUserByUsername(ctx, "txuser")
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		sentinel := store.ErrNotFound
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, domain.User{
				ID:           idx.New().String(),
				Username:     "ghost",
				Role:         domain.RoleStudent,
				PasswordHash: "x",
			}); err != nil {
				return err
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		_, err = s.Users().GetUserByUsername(ctx, "ghost")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
