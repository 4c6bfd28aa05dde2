package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
)

// TripService serves trip reads and explicit user deletion.
type TripService struct {
	repo  repo.TripRepo
	locks *UserLocks

	minDuration time.Duration
	minPings    int
}

// NewTripService constructs a TripService backed by the provided TripRepo.
// The tracker thresholds decide IsValid.
func NewTripService(r repo.TripRepo, locks *UserLocks, cfg TrackerConfig) *TripService {
	return &TripService{repo: r, locks: locks, minDuration: cfg.MinTripDuration, minPings: cfg.MinTripPings}
}

// GetByID returns one of the user's trips by ID.
// Returns domain.ErrNotFound if it does not exist or belongs to another user.
func (s *TripService) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Trip, error) {
	trip, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, storeErr("service.TripService.GetByID", err)
	}
	return trip, nil
}

// owned loads a trip and hides it unless userID owns it.
func (s *TripService) owned(ctx context.Context, userID string, id uuid.UUID) (*domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.UserID != userID {
		return nil, fmt.Errorf("trip %s: %w", id, domain.ErrNotFound)
	}
	return trip, nil
}

// ListByUser returns one page of the user's trips, most recent first, and the
// total count. Always returns a non-nil slice.
func (s *TripService) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
	trips, total, err := s.repo.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, 0, storeErr("service.TripService.ListByUser", err)
	}
	if trips == nil {
		trips = []*domain.Trip{}
	}
	return trips, total, nil
}

// IsValid reports whether the trip meets the minimum duration and ping count.
func (s *TripService) IsValid(trip *domain.Trip) bool {
	return trip.IsValid(s.minDuration, s.minPings)
}

// Delete removes one of the user's trips. It takes the owner's lock so a
// parse pass or live event never writes a trip back after deletion.
// Returns domain.ErrNotFound if the trip does not exist or belongs to another
// user.
func (s *TripService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return storeErr("service.TripService.Delete", err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr("service.TripService.Delete", err)
	}
	return nil
}
