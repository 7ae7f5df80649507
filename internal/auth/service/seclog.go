package service

import (
	"context"
	"log/slog"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/idx"
	"github.com/edugate/edugate/pkg/slogx"
)

// SecurityLogService appends rows to the durable audit trail. Logging is
// fire-and-forget: a failed insert must never fail the request that triggered
// it, so every sink error is swallowed after being reported to the structured
// logger.
type SecurityLogService struct {
	Store store.Store
}

// Log appends one audit event. The id and timestamp are assigned here so
// callers only describe what happened.
func (s *SecurityLogService) Log(ctx context.Context, e domain.SecurityEvent) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}

	if err := s.Store.SecurityEvents().InsertSecurityEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Warn("audit event dropped",
			slog.String("event_type", string(e.EventType)),
			slog.Any("error", err),
		)
	}
}

// LogLoginSuccess records a completed login.
func (s *SecurityLogService) LogLoginSuccess(ctx context.Context, u domain.User, ip, userAgent string) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      u.ID,
		UserRole:    u.Role,
		EventType:   domain.EventLoginSuccess,
		EventStatus: domain.StatusSuccess,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     "login successful",
	})
}

// LogLoginFailure records a rejected login attempt. The user id is empty when
// the username did not resolve to an account.
func (s *SecurityLogService) LogLoginFailure(ctx context.Context, userID, role, username, ip, userAgent, reason string) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventLoginFailed,
		EventStatus: domain.StatusFailure,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     reason,
		Metadata:    map[string]any{"username": username},
	})
}

// LogLogout records a session termination.
func (s *SecurityLogService) LogLogout(ctx context.Context, userID, role, ip, userAgent string, all bool) {
	details := "logout"
	if all {
		details = "logout from all devices"
	}
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventLogout,
		EventStatus: domain.StatusSuccess,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     details,
	})
}

// LogTokenRefreshed records a successful refresh rotation.
func (s *SecurityLogService) LogTokenRefreshed(ctx context.Context, userID, role, ip, userAgent string) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventTokenRefreshed,
		EventStatus: domain.StatusSuccess,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     "refresh token rotated",
	})
}

// LogPasswordChanged records a credential change.
func (s *SecurityLogService) LogPasswordChanged(ctx context.Context, userID, role, ip, userAgent string) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventPasswordChanged,
		EventStatus: domain.StatusSuccess,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     "password changed",
	})
}

// LogAccountLocked records a lockout triggered by repeated failures.
func (s *SecurityLogService) LogAccountLocked(ctx context.Context, userID, role, ip, userAgent string, failures int) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventAccountLocked,
		EventStatus: domain.StatusWarning,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     "account locked after repeated login failures",
		Metadata:    map[string]any{"consecutive_failures": failures},
	})
}

// LogCSRFRejected records a request blocked by anti-forgery validation.
func (s *SecurityLogService) LogCSRFRejected(ctx context.Context, userID, ip, userAgent, path, reason string) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		EventType:   domain.EventCSRFRejected,
		EventStatus: domain.StatusFailure,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     reason,
		Metadata:    map[string]any{"path": path},
	})
}

// LogSuspiciousActivity records behavior outside normal protocol flow, such as
// reuse of an already rotated refresh token.
func (s *SecurityLogService) LogSuspiciousActivity(ctx context.Context, userID, role, ip, userAgent, details string, metadata map[string]any) {
	s.Log(ctx, domain.SecurityEvent{
		UserID:      userID,
		UserRole:    role,
		EventType:   domain.EventSuspiciousActivity,
		EventStatus: domain.StatusWarning,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     details,
		Metadata:    metadata,
	})
}

// GetUserLogs returns the newest audit rows for a user+role pair.
func (s *SecurityLogService) GetUserLogs(ctx context.Context, userID, role string, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.SecurityEvents().ListUserSecurityEvents(ctx, userID, role, limit)
}

// GetRecentFailedLogins returns the newest failed-login rows across all users.
func (s *SecurityLogService) GetRecentFailedLogins(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.SecurityEvents().ListRecentFailedLogins(ctx, limit)
}
