package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
)

// TripPublisher uploads a trip to the remote sync channel.
type TripPublisher interface {
	PublishTrip(ctx context.Context, trip *domain.Trip) error
}

// SyncReport summarises one Push call.
type SyncReport struct {
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
}

// SyncService uploads finished trips and applies remote copies with a
// last-write-wins rule on the synced timestamp.
type SyncService struct {
	trips     repo.TripRepo
	publisher TripPublisher
	locks     *UserLocks
	log       *zap.Logger
	now       func() time.Time
}

// NewSyncService constructs a SyncService. publisher may be nil, in which
// case Push fails with domain.ErrCollaborator.
func NewSyncService(trips repo.TripRepo, publisher TripPublisher, locks *UserLocks, log *zap.Logger) *SyncService {
	return &SyncService{
		trips:     trips,
		publisher: publisher,
		locks:     locks,
		log:       log.Named("sync"),
		now:       time.Now,
	}
}

// WithClock replaces the wall clock used to stamp synced times.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	return s
}

// Push uploads the user's finished trips that changed since their last sync
// and whose active pings are all parsed, then stamps them synced.
func (s *SyncService) Push(ctx context.Context, userID string) (SyncReport, error) {
	var report SyncReport
	if s.publisher == nil {
		return report, fmt.Errorf("service.SyncService.Push: %w: sync is not configured", domain.ErrCollaborator)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	trips, err := s.trips.ListUnsynced(ctx, userID)
	if err != nil {
		return report, storeErr("service.SyncService.Push", err)
	}

	for _, trip := range trips {
		if !trip.FullyParsed() {
			report.Skipped++
			continue
		}

		at := s.now().UTC()
		trip.Synced = &at
		if err := s.publisher.PublishTrip(ctx, trip); err != nil {
			return report, fmt.Errorf("service.SyncService.Push: trip %s: %w: %w", trip.ID, domain.ErrCollaborator, err)
		}
		if err := s.trips.MarkSynced(ctx, trip.ID, at); err != nil {
			return report, storeErr("service.SyncService.Push", err)
		}
		report.Uploaded++
	}

	s.log.Info("trips pushed",
		zap.String("user_id", userID),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// Apply stores a remote trip when it is new locally or its synced time is
// strictly newer than the local copy's. It reports whether the trip was
// written.
func (s *SyncService) Apply(ctx context.Context, remote *domain.Trip) (bool, error) {
	if remote.Synced == nil {
		return false, fmt.Errorf("service.SyncService.Apply: %w: remote trip %s has no synced time", domain.ErrValidation, remote.ID)
	}

	unlock := s.locks.Lock(remote.UserID)
	defer unlock()

	local, err := s.trips.GetByID(ctx, remote.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return false, storeErr("service.SyncService.Apply", err)
	case local.UserID != remote.UserID:
		return false, fmt.Errorf("service.SyncService.Apply: %w: trip %s belongs to another user", domain.ErrValidation, remote.ID)
	case local.Synced != nil && !remote.Synced.After(*local.Synced):
		return false, nil
	}

	if err := s.trips.Save(ctx, remote); err != nil {
		return false, storeErr("service.SyncService.Apply", err)
	}

	// Save bumps updated_at; restamp so the applied copy is not pushed back.
	at := s.now().UTC()
	if remote.Synced.After(at) {
		at = *remote.Synced
	}
	if err := s.trips.MarkSynced(ctx, remote.ID, at); err != nil {
		return false, storeErr("service.SyncService.Apply", err)
	}
	remote.Synced = &at

	s.log.Info("remote trip applied",
		zap.String("user_id", remote.UserID),
		zap.String("trip_id", remote.ID.String()),
	)
	return true, nil
}
