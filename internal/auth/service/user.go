package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/mfa"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/cryptox"
	"github.com/edugate/edugate/pkg/kvstore"
	"github.com/edugate/edugate/pkg/slogx"
)

const (
	// MaxLoginFailures is the number of consecutive failed logins before the
	// account locks.
	MaxLoginFailures = 5

	// LockDuration is both the lockout length and the sliding window in which
	// failures are considered consecutive.
	LockDuration = 15 * time.Minute

	loginFailurePrefix = "loginfail:"
)

var (
	// ErrMFARequired signals that the credentials were correct but the
	// account is enrolled in MFA and no code was supplied.
	ErrMFARequired = errors.New("mfa_required")

	ErrInvalidMFACode = errors.New("invalid_mfa_code")
)

// PasswordPolicyError carries the list of rules a candidate password violated.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Violations, "; ")
}

// UserService handles credential verification, the lockout policy and
// password changes. Failure counters live in the key/value store so they
// survive restarts when a remote cache is configured, and expire on their own.
type UserService struct {
	Store  store.Store
	Cache  kvstore.Store
	Tokens *TokenService
	Audit  *SecurityLogService
	MFA    mfa.Provider
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// Authenticate verifies a username/password pair (plus a one-time code for
// MFA-enrolled accounts) and returns the account on success.
//
// Five consecutive failures inside the tracking window lock the account for
// LockDuration. The counter resets on success. All outcomes land in the audit
// trail; unknown usernames and wrong passwords are indistinguishable to the
// caller.
func (s *UserService) Authenticate(ctx context.Context, username, password, otpCode, ip, userAgent string) (domain.User, error) {
	now := time.Now()

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Audit.LogLoginFailure(ctx, "", "", username, ip, userAgent, "unknown username")
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if u.Locked(now) {
		s.Audit.LogLoginFailure(ctx, u.ID, u.Role, username, ip, userAgent, "account locked")
		return domain.User{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		s.recordLoginFailure(ctx, u, ip, userAgent)
		s.Audit.LogLoginFailure(ctx, u.ID, u.Role, username, ip, userAgent, "wrong password")
		return domain.User{}, ErrInvalidCredentials
	}

	if u.MFASecret != "" {
		if otpCode == "" {
			return domain.User{}, ErrMFARequired
		}
		if err := s.MFA.Verify(u.MFASecret, otpCode); err != nil {
			s.Audit.Log(ctx, domain.SecurityEvent{
				UserID:      u.ID,
				UserRole:    u.Role,
				EventType:   domain.EventMFAFailed,
				EventStatus: domain.StatusFailure,
				IPAddress:   ip,
				UserAgent:   userAgent,
				Details:     "one-time code rejected",
			})
			s.recordLoginFailure(ctx, u, ip, userAgent)
			return domain.User{}, ErrInvalidMFACode
		}
		s.Audit.Log(ctx, domain.SecurityEvent{
			UserID:      u.ID,
			UserRole:    u.Role,
			EventType:   domain.EventMFASuccess,
			EventStatus: domain.StatusSuccess,
			IPAddress:   ip,
			UserAgent:   userAgent,
			Details:     "one-time code accepted",
		})
	}

	// Counter deletion and rehashing are opportunistic; the login already
	// succeeded.
	_ = s.Cache.Delete(ctx, loginFailurePrefix+u.ID)
	s.rehashIfNeeded(ctx, u, password)

	s.Audit.LogLoginSuccess(ctx, u, ip, userAgent)
	return u, nil
}

func (s *UserService) recordLoginFailure(ctx context.Context, u domain.User, ip, userAgent string) {
	l := slogx.FromContext(ctx)
	key := loginFailurePrefix + u.ID

	failures := 1
	if raw, err := s.Cache.Get(ctx, key); err == nil {
		if n, err := strconv.Atoi(raw); err == nil {
			failures = n + 1
		}
	}
	if err := s.Cache.Set(ctx, key, strconv.Itoa(failures), LockDuration); err != nil {
		l.Warn("failed to track login failure", slog.Any("error", err))
	}

	if failures < MaxLoginFailures {
		return
	}

	until := time.Now().Add(LockDuration)
	if err := s.Store.Users().SetLockedUntil(ctx, u.ID, &until); err != nil {
		l.Error("failed to lock account",
			slog.String("user_id", u.ID),
			slog.Any("error", err),
		)
		return
	}
	_ = s.Cache.Delete(ctx, key)
	s.Audit.LogAccountLocked(ctx, u.ID, u.Role, ip, userAgent, failures)
}

// rehashIfNeeded upgrades digests produced by the legacy algorithm after the
// plaintext has verified. A failure here never affects the login.
func (s *UserService) rehashIfNeeded(ctx context.Context, u domain.User, password string) {
	if !cryptox.NeedsRehash(u.PasswordHash) {
		return
	}

	l := slogx.FromContext(ctx)
	newHash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Warn("password rehash failed", slog.String("user_id", u.ID), slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
		l.Warn("password rehash not persisted", slog.String("user_id", u.ID), slog.Any("error", err))
		return
	}
	l.Info("legacy password digest upgraded", slog.String("user_id", u.ID))
}

// ChangePassword verifies the current password, enforces the password policy
// and atomically swaps the hash while terminating every existing session of
// the account. The caller must re-authenticate afterwards.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, ip, userAgent string) error {
	if ok, violations := cryptox.ValidatePasswordStrength(newPassword); !ok {
		return &PasswordPolicyError{Violations: violations}
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(oldPassword, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, newHash); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID); err != nil {
			return err
		}
		_, err := tx.Users().IncrementTokenVersion(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.Audit.LogPasswordChanged(ctx, u.ID, u.Role, ip, userAgent)
	return nil
}

// UnlockAccount clears a lockout ahead of its expiry. Admin operation.
func (s *UserService) UnlockAccount(ctx context.Context, userID, ip, userAgent string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetLockedUntil(ctx, userID, nil); err != nil {
		return err
	}
	_ = s.Cache.Delete(ctx, loginFailurePrefix+userID)

	s.Audit.Log(ctx, domain.SecurityEvent{
		UserID:      u.ID,
		UserRole:    u.Role,
		EventType:   domain.EventAccountUnlocked,
		EventStatus: domain.StatusSuccess,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     "account unlocked by administrator",
	})
	return nil
}
