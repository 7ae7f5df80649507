package mfa

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPProvider(t *testing.T) {
	p := &TOTPProvider{Issuer: "edugate"}

	secret, url, err := p.Enroll("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, url, "otpauth://totp/")
	require.Contains(t, url, "edugate")

	t.Run("valid code passes", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		require.NoError(t, p.Verify(secret, code))
	})

	t.Run("wrong code fails", func(t *testing.T) {
		require.ErrorIs(t, p.Verify(secret, "000000"), ErrInvalidCode)
	})
}

func TestDisabled(t *testing.T) {
	var p Provider = Disabled{}

	_, _, err := p.Enroll("anyone")
	require.ErrorIs(t, err, ErrMFADisabled)
	require.ErrorIs(t, p.Verify("secret", "123456"), ErrMFADisabled)
}
