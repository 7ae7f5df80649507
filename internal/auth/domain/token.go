package domain

import "time"

// RefreshToken is the persisted record of an issued refresh token. The raw
// signed token is never stored; TokenHash is its SHA-256 fingerprint and the
// only handle for lookup, revocation and audit.
//
// A row with RevokedAt == nil and ExpiresAt in the future represents exactly
// one currently valid refresh credential.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	UserRole  string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time

	// RevokedAt is set on logout, rotation or forced invalidation.
	RevokedAt *time.Time

	// ReplacedBy points at the token id that superseded this one during
	// rotation. A revoked row with ReplacedBy set that is presented again is
	// the replay signature of a stolen token.
	ReplacedBy *string

	CreatedAt time.Time
}

// Active reports whether the row still represents a valid credential.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
	ExpiresIn      time.Duration
}
