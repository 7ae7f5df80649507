package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters. Fixed cost factors; changing them only affects new
// hashes since the parameters are encoded into the PHC string.
const (
	iterations  uint32 = 3
	memory      uint32 = 64 * 1024
	parallelism uint8  = 2
	saltLength         = 16
	keyLength   uint32 = 32
)

// Password length bounds enforced by ValidatePasswordStrength.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// algorithm identifies which primitive produced a digest. Digests are
// self-describing, so the variant is resolved once from the string prefix
// rather than matched ad hoc at every call site.
type algorithm int

const (
	algUnknown algorithm = iota
	algArgon2id
	algBcrypt
)

func digestAlgorithm(digest string) algorithm {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return algArgon2id
	case strings.HasPrefix(digest, "$2a$"),
		strings.HasPrefix(digest, "$2b$"),
		strings.HasPrefix(digest, "$2y$"):
		return algBcrypt
	default:
		return algUnknown
	}
}

// HashPassword generates a PHC-format Argon2id hash string including salt and
// parameters. All new credentials use Argon2id; bcrypt exists only so digests
// issued before the algorithm upgrade keep verifying.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism, b64Salt, b64Hash,
	), nil
}

// VerifyPassword compares a plaintext password against a stored digest,
// dispatching on the digest's structural marker. Returns ErrPasswordMismatch
// on any failure so callers cannot distinguish "bad format" from "wrong
// password".
func VerifyPassword(password, digest string) error {
	switch digestAlgorithm(digest) {
	case algArgon2id:
		return verifyArgon2id(password, digest)
	case algBcrypt:
		if bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) != nil {
			return ErrPasswordMismatch
		}
		return nil
	default:
		return ErrPasswordMismatch
	}
}

// NeedsRehash reports whether a digest was produced by the legacy algorithm
// and should be opportunistically re-hashed on the next successful login.
func NeedsRehash(digest string) bool {
	return digestAlgorithm(digest) != algArgon2id
}

func verifyArgon2id(password, encodedHash string) error {
	// PHC format: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return ErrPasswordMismatch
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" {
		return ErrPasswordMismatch
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return ErrPasswordMismatch
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrPasswordMismatch
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ErrPasswordMismatch
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - digest length is bounded by the format
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// ValidatePasswordStrength checks a candidate password against the password
// policy and returns the list of violated rules. An empty list means the
// password is acceptable.
func ValidatePasswordStrength(password string) (bool, []string) {
	var violations []string

	if len(password) < MinPasswordLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", MaxPasswordLength))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		violations = append(violations, "must contain at least one letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}

	return len(violations) == 0, violations
}
