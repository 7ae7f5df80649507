package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/idx"

	"github.com/stretchr/testify/require"
)

func newMonitor(t *testing.T, st store.Store) *MonitorService {
	t.Helper()
	return NewMonitorService(st, &SecurityLogService{Store: st}, slog.Default(), time.Minute)
}

func insertEvents(t *testing.T, st store.Store, n int, e domain.SecurityEvent) {
	t.Helper()
	for i := 0; i < n; i++ {
		e.ID = idx.New().String()
		require.NoError(t, st.SecurityEvents().InsertSecurityEvent(context.Background(), e))
	}
}

func alertsOfType(alerts []domain.Alert, typ string) []domain.Alert {
	var out []domain.Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestFailedLoginSpike(t *testing.T) {
	st := newTestStore(t)
	m := newMonitor(t, st)
	ctx := context.Background()

	insertEvents(t, st, FailedLoginThreshold-1, domain.SecurityEvent{
		EventType:   domain.EventLoginFailed,
		EventStatus: domain.StatusFailure,
	})

	alerts, err := m.RunSecurityScan(ctx)
	require.NoError(t, err)
	require.Empty(t, alertsOfType(alerts, domain.AlertBruteForce))

	insertEvents(t, st, 2, domain.SecurityEvent{
		EventType:   domain.EventLoginFailed,
		EventStatus: domain.StatusFailure,
	})

	alerts, err = m.RunSecurityScan(ctx)
	require.NoError(t, err)

	fired := alertsOfType(alerts, domain.AlertBruteForce)
	require.Len(t, fired, 1)
	require.Equal(t, domain.SeverityHigh, fired[0].Severity)
	require.Equal(t, 21, fired[0].Details["failed_logins"])
}

func TestMassLockout(t *testing.T) {
	st := newTestStore(t)
	m := newMonitor(t, st)
	ctx := context.Background()

	insertEvents(t, st, LockoutThreshold-1, domain.SecurityEvent{
		EventType:   domain.EventAccountLocked,
		EventStatus: domain.StatusWarning,
	})

	alerts, err := m.RunSecurityScan(ctx)
	require.NoError(t, err)
	require.Empty(t, alertsOfType(alerts, domain.AlertMassLockout))

	insertEvents(t, st, 1, domain.SecurityEvent{
		EventType:   domain.EventAccountLocked,
		EventStatus: domain.StatusWarning,
	})

	alerts, err = m.RunSecurityScan(ctx)
	require.NoError(t, err)

	fired := alertsOfType(alerts, domain.AlertMassLockout)
	require.Len(t, fired, 1)
	require.Equal(t, domain.SeverityCritical, fired[0].Severity)
}

func TestHotIPAlertsPerAddress(t *testing.T) {
	st := newTestStore(t)
	m := newMonitor(t, st)
	ctx := context.Background()

	insertEvents(t, st, HotIPThreshold, domain.SecurityEvent{
		EventType:   domain.EventLoginFailed,
		EventStatus: domain.StatusFailure,
		IPAddress:   "192.0.2.10",
	})
	insertEvents(t, st, HotIPThreshold, domain.SecurityEvent{
		EventType:   domain.EventLoginSuccess,
		EventStatus: domain.StatusSuccess,
		IPAddress:   "192.0.2.20",
	})
	insertEvents(t, st, 3, domain.SecurityEvent{
		EventType:   domain.EventLoginSuccess,
		EventStatus: domain.StatusSuccess,
		IPAddress:   "192.0.2.30",
	})

	alerts, err := m.RunSecurityScan(ctx)
	require.NoError(t, err)

	fired := alertsOfType(alerts, domain.AlertSuspiciousIP)
	require.Len(t, fired, 2)

	seen := map[string]bool{}
	for _, a := range fired {
		require.Equal(t, domain.SeverityMedium, a.Severity)
		seen[a.Details["ip_address"].(string)] = true
	}
	require.True(t, seen["192.0.2.10"])
	require.True(t, seen["192.0.2.20"])
}

func TestUnauthorizedSpike(t *testing.T) {
	st := newTestStore(t)
	m := newMonitor(t, st)
	ctx := context.Background()

	// Mixed failure types all count toward the same spike.
	insertEvents(t, st, 15, domain.SecurityEvent{
		EventType:   domain.EventCSRFRejected,
		EventStatus: domain.StatusFailure,
	})
	insertEvents(t, st, 15, domain.SecurityEvent{
		EventType:   domain.EventLoginFailed,
		EventStatus: domain.StatusFailure,
	})

	alerts, err := m.RunSecurityScan(ctx)
	require.NoError(t, err)

	fired := alertsOfType(alerts, domain.AlertUnauthorizedAccess)
	require.Len(t, fired, 1)
	require.Equal(t, domain.SeverityHigh, fired[0].Severity)
}

func TestSendAlertLandsInAuditTrail(t *testing.T) {
	st := newTestStore(t)
	m := newMonitor(t, st)
	ctx := context.Background()

	m.SendAlert(ctx, domain.Alert{
		Type:       domain.AlertBruteForce,
		Severity:   domain.SeverityHigh,
		Message:    "test alert",
		DetectedAt: time.Now(),
	})

	n, err := st.SecurityEvents().CountEventsByTypeSince(ctx, domain.EventSuspiciousActivity, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMonitorStartStop(t *testing.T) {
	st := newTestStore(t)
	m := NewMonitorService(st, &SecurityLogService{Store: st}, slog.Default(), 10*time.Millisecond)

	m.Start()
	time.Sleep(35 * time.Millisecond)
	m.Stop()
}
