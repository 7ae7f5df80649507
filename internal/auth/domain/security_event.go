package domain

import "time"

// EventType enumerates auditable authentication/security events.
type EventType string

const (
	EventLoginSuccess           EventType = "LOGIN_SUCCESS"
	EventLoginFailed            EventType = "LOGIN_FAILED"
	EventLogout                 EventType = "LOGOUT"
	EventTokenRefreshed         EventType = "TOKEN_REFRESHED"
	EventPasswordChanged        EventType = "PASSWORD_CHANGED"
	EventPasswordResetRequested EventType = "PASSWORD_RESET_REQUESTED"
	EventAccountLocked          EventType = "ACCOUNT_LOCKED"
	EventAccountUnlocked        EventType = "ACCOUNT_UNLOCKED"
	EventMFASuccess             EventType = "MFA_SUCCESS"
	EventMFAFailed              EventType = "MFA_FAILED"
	EventCSRFRejected           EventType = "CSRF_REJECTED"
	EventSuspiciousActivity     EventType = "SUSPICIOUS_ACTIVITY"
)

// EventStatus classifies the outcome an event records.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusWarning EventStatus = "warning"
)

// SecurityEvent is one append-only audit trail row. Rows are never mutated;
// deletion happens only through the retention sweep.
type SecurityEvent struct {
	ID          string
	UserID      string // empty when the actor is unknown (e.g. failed login)
	UserRole    string
	EventType   EventType
	EventStatus EventStatus
	IPAddress   string
	UserAgent   string
	Details     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Alert severities, ordered.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Alert types raised by the monitoring scans.
const (
	AlertBruteForce         = "BRUTE_FORCE_ATTACK"
	AlertMassLockout        = "MASS_LOCKOUT"
	AlertSuspiciousIP       = "SUSPICIOUS_IP_ACTIVITY"
	AlertUnauthorizedAccess = "UNAUTHORIZED_ACCESS_SPIKE"
)

// Alert is the result of a monitoring check crossing its threshold.
type Alert struct {
	Type       string
	Severity   string
	Message    string
	Details    map[string]any
	DetectedAt time.Time
}
