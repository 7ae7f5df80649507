package jwtx

import "github.com/golang-jwt/jwt/v5"

// UnsafeDecode parses a token WITHOUT verifying its signature.
//
// This exists solely so log and audit paths can attach a subject to events
// about tokens that failed verification. The returned claims are
// attacker-controlled; feeding them into any authorization decision is a
// vulnerability.
func UnsafeDecode(tokenStr string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
