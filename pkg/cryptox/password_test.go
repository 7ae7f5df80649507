package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль密码1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"),
				"hash should be in PHC format")

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Contains(t, parts[3], "m=")
			require.Contains(t, parts[3], "t=")
			require.Contains(t, parts[3], "p=")
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")
		})
	}
}

func TestVerifyPassword_Argon2id(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple1")
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("correct horse battery staple1", hash))
	require.ErrorIs(t, VerifyPassword("wrong password", hash), ErrPasswordMismatch)
}

func TestVerifyPassword_LegacyBcrypt(t *testing.T) {
	// Digest produced by the pre-upgrade algorithm still verifies.
	legacy, err := bcrypt.GenerateFromPassword([]byte("teacher2019pw"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("teacher2019pw", string(legacy)))
	require.ErrorIs(t, VerifyPassword("not the password", string(legacy)), ErrPasswordMismatch)
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	tests := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536",
		"$md5$whatever",
		"$argon2id$v=19$m=bad,t=bad,p=bad$salt$hash",
	}
	for _, digest := range tests {
		require.ErrorIs(t, VerifyPassword("anything", digest), ErrPasswordMismatch)
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("somepassword1")
	require.NoError(t, err)
	require.False(t, NeedsRehash(current))

	legacy, err := bcrypt.GenerateFromPassword([]byte("somepassword1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, NeedsRehash(string(legacy)))

	require.True(t, NeedsRehash("garbage"))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		ok         bool
		violations int
	}{
		{"acceptable", "longenough1", true, 0},
		{"too short", "abc1", false, 1},
		{"too long", strings.Repeat("a", 200) + "1", false, 1},
		{"no digit", "justletters", false, 1},
		{"no letter", "123456789", false, 1},
		{"empty", "", false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, violations := ValidatePasswordStrength(tt.password)
			require.Equal(t, tt.ok, ok)
			require.Len(t, violations, tt.violations)
		})
	}
}
