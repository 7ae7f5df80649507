package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer issues HS256-signed tokens with a fixed issuer/audience pair.
// Access and refresh tokens use separate Signer instances with distinct
// secrets, so a leaked refresh secret cannot mint access tokens.
type Signer struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Sign stamps registered claims (iss, aud, iat, nbf, exp, jti) onto c and
// returns the signed compact serialization.
func (s Signer) Sign(c Claims) (string, error) {
	now := time.Now().UTC()

	c.Issuer = s.Issuer
	c.Audience = jwt.ClaimStrings{s.Audience}
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.Secret)
}

// Verifier validates HS256 tokens. The algorithm is pinned via
// jwt.WithValidMethods so a token signed with "none" or an asymmetric
// algorithm is rejected before any claim is read.
type Verifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Verify checks signature, issuer, audience and expiry. Every failure
// collapses to ErrInvalidToken.
func (v Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.Issuer),
		jwt.WithAudience(v.Audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.Secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	return *claims, nil
}

// VerifyStrict is the middleware-oriented variant: beyond Verify it rejects
// any token lacking a token version claim. Tokens minted before version
// tracking existed are treated as forged, not grandfathered.
func (v Verifier) VerifyStrict(tokenStr string) (Claims, error) {
	claims, err := v.Verify(tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenVersion < 1 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
