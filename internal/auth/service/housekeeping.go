package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/store"
)

const (
	// attemptLogRetention is how long attempt rows are kept globally.
	attemptLogRetention = 30 * 24 * time.Hour

	// recoveryStateRetention drops recovery counters untouched this long.
	recoveryStateRetention = 7 * 24 * time.Hour
)

// HousekeepingService periodically deletes defunct rows so the sessions,
// login_attempts, login_locks, and recovery_states tables do not grow
// without bound. All read paths already hide expired state; this is purely
// about disk.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. Non-blocking; call Stop to shut
// it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// First sweep at startup so a restart never defers cleanup a full tick.
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

// sweep runs every cleanup independently; one failure does not stop the rest.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	if n, err := s.Store.Sessions().DeleteDefunctSessions(ctx, now); err != nil {
		s.Logger.Error("failed to sweep sessions", "error", err)
	} else if n > 0 {
		s.Logger.Debug("swept sessions", "deleted", n)
	}

	if n, err := s.Store.LoginAttempts().DeleteAllAttemptsBefore(ctx, now.Add(-attemptLogRetention)); err != nil {
		s.Logger.Error("failed to sweep login attempts", "error", err)
	} else if n > 0 {
		s.Logger.Debug("swept login attempts", "deleted", n)
	}

	if n, err := s.Store.LoginLocks().DeleteExpiredLoginLocks(ctx, now); err != nil {
		s.Logger.Error("failed to sweep login locks", "error", err)
	} else if n > 0 {
		s.Logger.Debug("swept login locks", "deleted", n)
	}

	if n, err := s.Store.RecoveryStates().DeleteStaleRecoveryStates(ctx, now.Add(-recoveryStateRetention)); err != nil {
		s.Logger.Error("failed to sweep recovery states", "error", err)
	} else if n > 0 {
		s.Logger.Debug("swept recovery states", "deleted", n)
	}
}
