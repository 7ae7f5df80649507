// Package csrf implements per-session anti-forgery tokens backed by the
// key/value store. One token lives per session; issuing a new one replaces
// the old.
package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/edugate/edugate/pkg/cryptox"
	"github.com/edugate/edugate/pkg/kvstore"
)

// TokenTTL is the anti-forgery token lifetime. Issuing refreshes it.
const TokenTTL = time.Hour

const keyPrefix = "csrf:"

// ErrInvalid reports a missing, mismatched or expired token. Callers get no
// finer detail than that.
var ErrInvalid = errors.New("csrf: invalid token")

// record is what gets stored; the embedded expiry double-checks the store's
// own TTL so a store that ignores TTLs still cannot extend a token's life.
type record struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and validates per-session tokens.
type Service struct {
	Cache kvstore.Store
}

// Issue creates a fresh token for the session, replacing any previous one.
func (s *Service) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(record{
		Token:     token,
		ExpiresAt: time.Now().Add(TokenTTL),
	})
	if err != nil {
		return "", err
	}

	if err := s.Cache.Set(ctx, keyPrefix+sessionID, string(raw), TokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks the presented token against the session's stored one using
// a constant-time comparison. Any failure collapses to ErrInvalid.
func (s *Service) Validate(ctx context.Context, sessionID, token string) error {
	if token == "" {
		return ErrInvalid
	}

	raw, err := s.Cache.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return ErrInvalid
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ErrInvalid
	}
	if time.Now().After(rec.ExpiresAt) {
		return ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) != 1 {
		return ErrInvalid
	}
	return nil
}

// Revoke drops the session's token, e.g. on logout.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.Cache.Delete(ctx, keyPrefix+sessionID)
}
