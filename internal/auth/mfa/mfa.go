// Package mfa abstracts the optional second authentication factor. The rest
// of the codebase depends on Provider only; whether MFA is on or off is
// decided once, at composition time, by wiring either TOTPProvider or
// Disabled.
package mfa

import (
	"errors"

	"github.com/pquerna/otp/totp"
)

var (
	// ErrMFADisabled is returned by every Disabled operation.
	ErrMFADisabled = errors.New("mfa_disabled")

	// ErrInvalidCode reports a TOTP code that does not match the secret.
	ErrInvalidCode = errors.New("invalid_mfa_code")
)

// Provider is the second-factor contract.
type Provider interface {
	// Enroll generates a new shared secret for the account and returns the
	// secret and the otpauth:// provisioning URL for authenticator apps.
	Enroll(accountName string) (secret, url string, err error)

	// Verify checks a one-time code against the stored secret.
	Verify(secret, code string) error
}

// TOTPProvider implements time-based one-time passwords.
type TOTPProvider struct {
	Issuer string
}

func (p *TOTPProvider) Enroll(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (p *TOTPProvider) Verify(secret, code string) error {
	if !totp.Validate(code, secret) {
		return ErrInvalidCode
	}
	return nil
}

// Disabled is the provider wired when the deployment runs without a second
// factor.
type Disabled struct{}

func (Disabled) Enroll(string) (string, string, error) { return "", "", ErrMFADisabled }
func (Disabled) Verify(string, string) error           { return ErrMFADisabled }
