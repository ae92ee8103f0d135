package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/store"
)

// HousekeepingService periodically deletes expired challenges, session
// families and signing keys so the database does not grow without bound.
// Expiry is always enforced lazily on the request path too; this is purely
// hygiene.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the service. Interval defaults to 1 hour.
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

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once at startup.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes expired rows. Each deletion is independent; one failure does
// not stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	if err := s.Store.Challenges().DeleteExpiredChallenges(ctx); err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
	}
	if err := s.Store.SessionFamilies().DeleteExpiredFamilies(ctx); err != nil {
		s.Logger.Error("failed to delete expired session families", "error", err)
	}
	if err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx); err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	}
	s.Logger.Debug("housekeeping sweep completed")
}
