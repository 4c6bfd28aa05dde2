// Package service contains the business logic for travelog.
// Services enforce the trip lifecycle, drive classification and orchestrate
// repo calls. No SQL lives here: services depend on repo interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
	"github.com/pkordes/travelog/internal/telemetry"
)

// EventKind names a lifecycle event.
type EventKind string

const (
	EventPing        EventKind = "ping"
	EventRegionLeave EventKind = "region_leave"
	EventRegionEnter EventKind = "region_enter"
)

// Outcome reports what an event did. Handlers never return errors: a dropped
// event comes back with Applied false and Err set to the logged reason.
type Outcome struct {
	Kind    EventKind
	Applied bool
	TripID  uuid.UUID
	PingID  uuid.UUID
	Err     error
}

// Reason is the categorised error label, empty when the event was applied.
func (o Outcome) Reason() string {
	return reason(o.Err)
}

// LocationSample is one report from the location provider.
// A zero Timestamp means "now".
type LocationSample struct {
	Coordinates domain.Coordinates
	Altitude    float64
	Timestamp   time.Time
}

// EventOption adjusts a single event.
type EventOption func(*eventOptions)

type eventOptions struct {
	at *time.Time
}

// At overrides the event time, for deterministic replay.
func At(t time.Time) EventOption {
	return func(o *eventOptions) { o.at = &t }
}

// TrackerConfig holds the lifecycle thresholds.
type TrackerConfig struct {
	// MinPingInterval is the minimum spacing between consecutive pings.
	MinPingInterval time.Duration

	// A finished trip shorter than MinTripDuration or with fewer than
	// MinTripPings active pings is eligible for discard.
	MinTripDuration time.Duration
	MinTripPings    int
}

// DefaultTrackerConfig returns the production thresholds.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MinPingInterval: 15 * time.Minute,
		MinTripDuration: time.Hour,
		MinTripPings:    3,
	}
}

// TrackerService is the per-user trip state machine. A user is either in
// NoOpenTrip (no trip, or the latest one finished) or OpenTrip.
type TrackerService struct {
	trips   repo.TripRepo
	locks   *UserLocks
	cfg     TrackerConfig
	metrics *telemetry.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewTrackerService constructs a TrackerService. metrics may be nil.
func NewTrackerService(trips repo.TripRepo, locks *UserLocks, cfg TrackerConfig, metrics *telemetry.Metrics, log *zap.Logger) *TrackerService {
	return &TrackerService{
		trips:   trips,
		locks:   locks,
		cfg:     cfg,
		metrics: metrics,
		log:     log.Named("tracker"),
		now:     time.Now,
	}
}

// WithClock replaces the wall clock used when no event time is given.
func (s *TrackerService) WithClock(now func() time.Time) *TrackerService {
	s.now = now
	return s
}

// OnLocationPing appends an unparsed ping to the user's open trip.
// Dropped when no trip is open, or when the sample is less than
// MinPingInterval after the trip's last ping (out-of-order samples included).
func (s *TrackerService) OnLocationPing(ctx context.Context, userID string, sample LocationSample, opts ...EventOption) Outcome {
	out := Outcome{Kind: EventPing}
	at := s.eventTime(sample.Timestamp, opts)

	if err := sample.Coordinates.Validate(); err != nil {
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnLocationPing: %w", err))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	trip, err := s.openTrip(ctx, userID)
	if err != nil {
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnLocationPing: %w", err))
	}
	out.TripID = trip.ID

	if last := trip.Last(); last != nil {
		if elapsed := at.Sub(last.Timestamp); elapsed < s.cfg.MinPingInterval {
			return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnLocationPing: %w: %s since last ping, minimum %s",
				domain.ErrState, elapsed, s.cfg.MinPingInterval))
		}
	}

	ping := domain.NewPing(sample.Coordinates, sample.Altitude, at)
	trip.Append(ping)
	out.PingID = ping.ID

	if err := s.trips.Save(ctx, trip); err != nil {
		return s.finish(userID, out, storeErr("service.TrackerService.OnLocationPing", err))
	}
	out.Applied = true
	return s.finish(userID, out, nil)
}

// OnRegionLeave opens a trip with a synthetic, already parsed first ping at
// the region's centre. Dropped when the user already has an open trip.
func (s *TrackerService) OnRegionLeave(ctx context.Context, userID string, region domain.Region, opts ...EventOption) Outcome {
	out := Outcome{Kind: EventRegionLeave}
	at := s.eventTime(time.Time{}, opts)

	if err := region.Validate(); err != nil {
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnRegionLeave: %w", err))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	latest, err := s.trips.Latest(ctx, userID)
	switch {
	case err == nil && latest.IsOpen():
		out.TripID = latest.ID
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnRegionLeave: %w: trip %s is already open", domain.ErrState, latest.ID))
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return s.finish(userID, out, storeErr("service.TrackerService.OnRegionLeave", err))
	}

	trip := domain.NewTrip(userID, at)
	ping := regionPing(region, at)
	ping.Parsed = true
	trip.Append(ping)
	out.TripID, out.PingID = trip.ID, ping.ID

	if err := s.trips.Save(ctx, trip); err != nil {
		return s.finish(userID, out, storeErr("service.TrackerService.OnRegionLeave", err))
	}
	out.Applied = true
	return s.finish(userID, out, nil)
}

// OnRegionEnter closes the open trip with a terminal ping at the region's
// centre. The terminal ping is left unparsed for the next parse pass.
func (s *TrackerService) OnRegionEnter(ctx context.Context, userID string, region domain.Region, opts ...EventOption) Outcome {
	out := Outcome{Kind: EventRegionEnter}
	at := s.eventTime(time.Time{}, opts)

	if err := region.Validate(); err != nil {
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnRegionEnter: %w", err))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	trip, err := s.openTrip(ctx, userID)
	if err != nil {
		return s.finish(userID, out, fmt.Errorf("service.TrackerService.OnRegionEnter: %w", err))
	}
	out.TripID = trip.ID

	ping := regionPing(region, at)
	trip.Append(ping)
	trip.Finish(at)
	out.PingID = ping.ID

	if !trip.IsValid(s.cfg.MinTripDuration, s.cfg.MinTripPings) {
		s.log.Info("trip eligible for discard",
			zap.String("user_id", userID),
			zap.String("trip_id", trip.ID.String()),
			zap.Duration("duration", trip.Duration()),
			zap.Int("pings", len(trip.Active())),
		)
	}

	if err := s.trips.Save(ctx, trip); err != nil {
		return s.finish(userID, out, storeErr("service.TrackerService.OnRegionEnter", err))
	}
	out.Applied = true
	return s.finish(userID, out, nil)
}

// openTrip returns the user's open trip or a domain.ErrState error.
func (s *TrackerService) openTrip(ctx context.Context, userID string) (*domain.Trip, error) {
	trip, err := s.trips.Latest(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no open trip", domain.ErrState)
	}
	if err != nil {
		return nil, storeErr("latest trip", err)
	}
	if !trip.IsOpen() {
		return nil, fmt.Errorf("%w: trip %s is already finished", domain.ErrState, trip.ID)
	}
	return trip, nil
}

// eventTime picks the override, then the sample time, then the clock.
func (s *TrackerService) eventTime(sampled time.Time, opts []EventOption) time.Time {
	var o eventOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.at != nil:
		return *o.at
	case !sampled.IsZero():
		return sampled
	default:
		return s.now()
	}
}

// finish logs and counts the outcome.
func (s *TrackerService) finish(userID string, out Outcome, err error) Outcome {
	out.Err = err
	result := "applied"
	if err != nil {
		result = out.Reason()
	}
	if out.Kind == EventPing {
		s.metrics.Ping(result)
	} else {
		s.metrics.RegionEvent(string(out.Kind), result)
	}

	if err == nil {
		s.log.Debug("event applied",
			zap.String("user_id", userID),
			zap.String("kind", string(out.Kind)),
			zap.String("trip_id", out.TripID.String()),
		)
		return out
	}

	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("kind", string(out.Kind)),
		zap.String("reason", result),
		zap.Error(err),
	}
	if out.TripID != uuid.Nil {
		fields = append(fields, zap.String("trip_id", out.TripID.String()))
	}
	switch result {
	case "validation", "state":
		s.log.Warn("event dropped", fields...)
	default:
		s.log.Error("event dropped", fields...)
	}
	return out
}

// regionPing builds a ping at the region's centre carrying the region's place.
func regionPing(region domain.Region, at time.Time) *domain.Ping {
	ping := domain.NewPing(region.Center, 0, at)
	if region.Place != nil {
		place := *region.Place
		ping.Place = &place
	}
	return ping
}
