package domain

import "time"

// Roles known to the platform. Authorization is coarse role-based; branch
// scoping happens through BranchID.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleAdmin   = "admin"
)

// User is an account as the auth core sees it. School-domain attributes
// (enrolments, classes, guardianship) live elsewhere.
type User struct {
	ID           string
	Username     string
	Name         string
	Role         string
	BranchID     string
	PasswordHash string

	// TokenVersion is the per-account monotonic counter. Every issued token
	// embeds the value current at issuance; bumping it invalidates all
	// previously issued tokens at once. Starts at 1.
	TokenVersion int64

	// MFASecret is set once the account enrols with the MFA provider.
	// Empty while MFA is disabled platform-wide.
	MFASecret string

	// LockedUntil is set when consecutive login failures lock the account.
	LockedUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is locked out at the given instant.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
