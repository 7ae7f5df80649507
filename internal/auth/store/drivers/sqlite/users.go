package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, name, role, branch_id, password_hash, token_version, mfa_secret, locked_until, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.TokenVersion < 1 {
		u.TokenVersion = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, role, branch_id, password_hash, token_version, mfa_secret, locked_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.Role, u.BranchID, u.PasswordHash,
		u.TokenVersion, mapStringNull(u.MFASecret), mapOptionalTime(u.LockedUntil), now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) IncrementTokenVersion(ctx context.Context, userID string) (int64, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = ?
		 WHERE id = ? RETURNING token_version`,
		time.Now().UTC(), userID)

	var version int64
	if err := row.Scan(&version); err != nil {
		return 0, mapNotFound(err)
	}
	return version, nil
}

func (r *usersRepo) SetLockedUntil(ctx context.Context, userID string, until *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET locked_until = ?, updated_at = ? WHERE id = ?`,
		mapOptionalTime(until), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u           domain.User
		mfaSecret   sql.NullString
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Role, &u.BranchID, &u.PasswordHash,
		&u.TokenVersion, &mfaSecret, &lockedUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.MFASecret = mapNullString(mfaSecret)
	u.LockedUntil = mapNullTimePtr(lockedUntil)
	return u, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
