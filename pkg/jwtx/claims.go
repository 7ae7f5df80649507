package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short access tokens keep the blast radius of a stolen
// cookie small; refresh tokens carry the long-lived session.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenTypeRefresh is the type discriminator carried by refresh tokens so an
// access-token verifier can never be satisfied by a refresh token and vice
// versa.
const TokenTypeRefresh = "refresh"

// ErrInvalidToken is the single error surfaced for every verification
// failure: bad signature, wrong algorithm, expired, wrong issuer or audience,
// missing token version. Collapsing them prevents callers from leaking which
// check failed.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// Claims are the token claims shared by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the account's role (student, teacher, parent, admin).
	Role string `json:"role,omitempty"`

	// Name is the display name, carried for UI convenience only.
	Name string `json:"name,omitempty"`

	// BranchID scopes the account to a school branch (tenant).
	BranchID string `json:"branch_id,omitempty"`

	// TokenVersion is the per-account monotonic counter current at issuance.
	// Versions start at 1, so a zero here means the claim was absent and the
	// token predates version tracking; strict verification rejects it.
	TokenVersion int64 `json:"token_version,omitempty"`

	// TokenType discriminates refresh tokens ("refresh"). Empty for access
	// tokens.
	TokenType string `json:"type,omitempty"`
}

// NewAccessClaims builds claims for an access token.
func NewAccessClaims(userID, role, name, branchID string, tokenVersion int64) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Role:             role,
		Name:             name,
		BranchID:         branchID,
		TokenVersion:     tokenVersion,
	}
}

// NewRefreshClaims builds claims for a refresh token. jti must be unique per
// token; it is also the persisted row id.
func NewRefreshClaims(userID, role string, tokenVersion int64, jti string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID, ID: jti},
		Role:             role,
		TokenVersion:     tokenVersion,
		TokenType:        TokenTypeRefresh,
	}
}
