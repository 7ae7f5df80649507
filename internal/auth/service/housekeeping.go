package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/edugate/edugate/internal/auth/store"
)

// DefaultEventRetention is how long audit rows are kept before the retention
// sweep removes them.
const DefaultEventRetention = 90 * 24 * time.Hour

// HousekeepingService periodically deletes expired refresh tokens and applies
// the audit-trail retention policy so neither table grows without bound.
type HousekeepingService struct {
	Store          store.Store
	Logger         *slog.Logger
	Interval       time.Duration
	EventRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. If interval is 0
// or negative, defaults to 1 hour; retention defaults to 90 days.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultEventRetention
	}

	return &HousekeepingService{
		Store:          st,
		Logger:         logger,
		Interval:       interval,
		EventRetention: retention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the worker, waiting for any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs the deletions. Each one is independent; a failure in one
// does not stop the others.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else {
		s.Logger.Debug("deleted expired refresh tokens")
	}

	cutoff := time.Now().Add(-s.EventRetention)
	if err := s.Store.SecurityEvents().DeleteSecurityEventsBefore(ctx, cutoff); err != nil {
		s.Logger.Error("failed to trim security events", "error", err)
	} else {
		s.Logger.Debug("trimmed security events", "cutoff", cutoff)
	}
}
