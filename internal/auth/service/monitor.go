package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/slogx"
)

// Monitoring thresholds. Each check is windowed independently; a check fires
// when its count reaches the threshold within the window.
const (
	FailedLoginThreshold = 20
	FailedLoginWindow    = 15 * time.Minute

	LockoutThreshold = 5
	LockoutWindow    = 30 * time.Minute

	HotIPThreshold = 50
	HotIPWindow    = 10 * time.Minute

	UnauthorizedThreshold = 30
	UnauthorizedWindow    = 15 * time.Minute
)

// MonitorService runs stateless aggregate checks over the audit trail to
// surface attack patterns. Each scan reads counts for the trailing windows;
// no state is kept between scans.
type MonitorService struct {
	Store    store.Store
	Audit    *SecurityLogService
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitorService creates the monitoring loop. If interval is 0 or
// negative, defaults to 5 minutes.
func NewMonitorService(st store.Store, audit *SecurityLogService, logger *slog.Logger, interval time.Duration) *MonitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MonitorService{
		Store:    st,
		Audit:    audit,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// RunSecurityScan executes every check and returns the alerts that fired.
// Individual check failures are logged and skipped so one broken query cannot
// blind the remaining checks.
func (s *MonitorService) RunSecurityScan(ctx context.Context) ([]domain.Alert, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	var alerts []domain.Alert

	checks := []func(context.Context, time.Time) ([]domain.Alert, error){
		s.checkFailedLoginSpike,
		s.checkMassLockout,
		s.checkHotIPs,
		s.checkUnauthorizedSpike,
	}
	for _, check := range checks {
		found, err := check(ctx, now)
		if err != nil {
			l.Error("security check failed", slog.Any("error", err))
			continue
		}
		alerts = append(alerts, found...)
	}

	for _, a := range alerts {
		s.SendAlert(ctx, a)
	}
	return alerts, nil
}

func (s *MonitorService) checkFailedLoginSpike(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	n, err := s.Store.SecurityEvents().CountEventsByTypeSince(ctx, domain.EventLoginFailed, now.Add(-FailedLoginWindow))
	if err != nil {
		return nil, err
	}
	if n < FailedLoginThreshold {
		return nil, nil
	}
	return []domain.Alert{{
		Type:     domain.AlertBruteForce,
		Severity: domain.SeverityHigh,
		Message:  fmt.Sprintf("%d failed logins in the last %s", n, FailedLoginWindow),
		Details: map[string]any{
			"failed_logins": n,
			"window":        FailedLoginWindow.String(),
		},
		DetectedAt: now,
	}}, nil
}

func (s *MonitorService) checkMassLockout(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	n, err := s.Store.SecurityEvents().CountEventsByTypeSince(ctx, domain.EventAccountLocked, now.Add(-LockoutWindow))
	if err != nil {
		return nil, err
	}
	if n < LockoutThreshold {
		return nil, nil
	}
	return []domain.Alert{{
		Type:     domain.AlertMassLockout,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("%d accounts locked in the last %s", n, LockoutWindow),
		Details: map[string]any{
			"lockouts": n,
			"window":   LockoutWindow.String(),
		},
		DetectedAt: now,
	}}, nil
}

// checkHotIPs raises one alert per offending address.
func (s *MonitorService) checkHotIPs(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	counts, err := s.Store.SecurityEvents().CountEventsByIPSince(ctx, now.Add(-HotIPWindow), HotIPThreshold)
	if err != nil {
		return nil, err
	}

	var alerts []domain.Alert
	for ip, n := range counts {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertSuspiciousIP,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("%d events from %s in the last %s", n, ip, HotIPWindow),
			Details: map[string]any{
				"ip_address": ip,
				"events":     n,
				"window":     HotIPWindow.String(),
			},
			DetectedAt: now,
		})
	}
	return alerts, nil
}

func (s *MonitorService) checkUnauthorizedSpike(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	n, err := s.Store.SecurityEvents().CountEventsByStatusSince(ctx, domain.StatusFailure, now.Add(-UnauthorizedWindow))
	if err != nil {
		return nil, err
	}
	if n < UnauthorizedThreshold {
		return nil, nil
	}
	return []domain.Alert{{
		Type:     domain.AlertUnauthorizedAccess,
		Severity: domain.SeverityHigh,
		Message:  fmt.Sprintf("%d failure events in the last %s", n, UnauthorizedWindow),
		Details: map[string]any{
			"failures": n,
			"window":   UnauthorizedWindow.String(),
		},
		DetectedAt: now,
	}}, nil
}

// SendAlert records an alert in the structured log and the audit trail. This
// is the integration point for external notification channels.
func (s *MonitorService) SendAlert(ctx context.Context, a domain.Alert) {
	slogx.FromContext(ctx).Warn("security alert",
		slog.String("alert_type", a.Type),
		slog.String("severity", a.Severity),
		slog.String("message", a.Message),
	)

	s.Audit.Log(ctx, domain.SecurityEvent{
		EventType:   domain.EventSuspiciousActivity,
		EventStatus: domain.StatusWarning,
		Details:     a.Message,
		Metadata: map[string]any{
			"alert_type": a.Type,
			"severity":   a.Severity,
			"details":    a.Details,
		},
	})
}

// Start begins the periodic scan loop. Non-blocking; call Stop to shut down.
func (s *MonitorService) Start() {
	go s.run()
	s.Logger.Info("security monitor started", "interval", s.Interval)
}

// Stop shuts the loop down and waits for any in-progress scan.
func (s *MonitorService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("security monitor stopped")
}

func (s *MonitorService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx := slogx.WithContext(context.Background(), s.Logger)
			if _, err := s.RunSecurityScan(ctx); err != nil {
				s.Logger.Error("security scan failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}
