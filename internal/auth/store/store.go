package store

import (
	"context"
	"errors"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface over the relational datastore.
// Concrete drivers implement it; services depend only on this interface. It
// exposes sub-repositories to keep concerns tidy and testable.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	SecurityEvents() SecurityEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back if fn errors and
	// committing otherwise. This is the recommended way to do multi-step
	// operations that must be atomic (e.g. refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// IncrementTokenVersion bumps the per-account counter and returns the
	// new value. Every token issued before the bump becomes invalid.
	IncrementTokenVersion(ctx context.Context, userID string) (int64, error)

	// SetLockedUntil sets or clears (nil) the lockout timestamp.
	SetLockedUntil(ctx context.Context, userID string, until *time.Time) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the row by token fingerprint, revoked or
	// not. Callers decide what a revoked row means (replay detection needs
	// to see them).
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken sets revoked_at, recording replacedBy when the
	// revocation is part of a rotation. Empty replacedBy means plain revoke.
	RevokeRefreshToken(ctx context.Context, hash, replacedBy string) error

	// RevokeAllUserRefreshTokens bulk-revokes every live token for a user
	// (logout-all, password change, compromise response).
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is retention housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type SecurityEvents interface {
	// InsertSecurityEvent appends one audit row. The audit trail is
	// append-only; there is deliberately no update method.
	InsertSecurityEvent(ctx context.Context, e domain.SecurityEvent) error

	// ListUserSecurityEvents returns the newest events for a user+role pair.
	ListUserSecurityEvents(ctx context.Context, userID, role string, limit int) ([]domain.SecurityEvent, error)

	// ListRecentFailedLogins returns the newest LOGIN_FAILED events.
	ListRecentFailedLogins(ctx context.Context, limit int) ([]domain.SecurityEvent, error)

	// CountEventsByTypeSince counts events of one type created at or after
	// since.
	CountEventsByTypeSince(ctx context.Context, t domain.EventType, since time.Time) (int, error)

	// CountEventsByStatusSince counts events with the given status created
	// at or after since.
	CountEventsByStatusSince(ctx context.Context, s domain.EventStatus, since time.Time) (int, error)

	// CountEventsByIPSince returns, per IP address, how many events that IP
	// produced since the given time, including only IPs at or above
	// minCount.
	CountEventsByIPSince(ctx context.Context, since time.Time, minCount int) (map[string]int, error)

	// DeleteSecurityEventsBefore applies the retention policy.
	DeleteSecurityEventsBefore(ctx context.Context, cutoff time.Time) error
}
