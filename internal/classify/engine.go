// Package classify decides, ping by ping, whether a trip sample was a transit
// hop or a dwell, folds redundant samples into their neighbours, and attaches
// venues to dwells.
package classify

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/geo"
	"github.com/pkordes/travelog/internal/telemetry"
)

var tracer = otel.Tracer("github.com/pkordes/travelog/internal/classify")

// Geocoder resolves coordinates to a country and city.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c domain.Coordinates) (domain.Place, error)
}

// VenueFinder looks up the venue at a position. A nil venue with a nil error
// means nothing was found.
type VenueFinder interface {
	FindVenue(ctx context.Context, c domain.Coordinates, altitude float64) (*domain.Venue, error)
}

// Outcome names what Classify did with a ping.
type Outcome string

const (
	// OutcomeDeferred: terminal ping of an open trip, left unparsed.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeKept: parsed in place, no venue lookup.
	OutcomeKept Outcome = "kept"
	// OutcomeFolded: merged into a preceding transport ping.
	OutcomeFolded Outcome = "folded"
	// OutcomeVenue: venue lookup performed; the venue, if any, is attached.
	OutcomeVenue Outcome = "venue"
	// OutcomeSameVenue: the preceding ping was at the same venue, so the two
	// were merged keeping the newer coordinates.
	OutcomeSameVenue Outcome = "same_venue"
)

// Result reports the decision for one ping.
type Result struct {
	Outcome Outcome
	Ping    *domain.Ping

	// MergedInto is the surviving ping when Outcome is folded or same_venue.
	MergedInto *domain.Ping
}

// Merged reports whether the classified ping was tombstoned.
func (r Result) Merged() bool {
	return r.MergedInto != nil
}

// Config holds the classification thresholds.
type Config struct {
	// PingInterval is the nominal interval between location pings.
	PingInterval time.Duration

	// VisitedFactor scales PingInterval into the dwell threshold that
	// warrants a venue lookup.
	VisitedFactor float64

	// VenueLookupDelay is the minimum spacing between venue lookups.
	// Zero disables the spacing.
	VenueLookupDelay time.Duration

	FlightAltitudeM  float64
	FlightDistanceKm float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		PingInterval:     15 * time.Minute,
		VisitedFactor:    1.5,
		VenueLookupDelay: 1500 * time.Millisecond,
		FlightAltitudeM:  4000,
		FlightDistanceKm: 80,
	}
}

// VisitedThreshold is the elapsed time since the previous ping after which a
// ping counts as a visit (1350s for a 15 minute interval).
func (c Config) VisitedThreshold() time.Duration {
	return time.Duration(float64(c.PingInterval) * c.VisitedFactor)
}

// InFlight reports whether the ping looks like it was taken in transit: high
// altitude, a long hop from the previous ping, or no resolvable city.
// p.Distance must already be set for the distance test to apply.
func (c Config) InFlight(p *domain.Ping) bool {
	if p.Altitude > c.FlightAltitudeM {
		return true
	}
	if p.Distance != nil && *p.Distance > c.FlightDistanceKm {
		return true
	}
	return !p.Place.HasCity()
}

// Engine classifies pings. It is safe for concurrent use across trips; calls
// for the same trip must be serialised by the caller.
type Engine struct {
	geocoder Geocoder
	venues   VenueFinder
	cfg      Config
	limiter  *rate.Limiter
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

// NewEngine constructs an Engine. metrics may be nil.
func NewEngine(geocoder Geocoder, venues VenueFinder, cfg Config, metrics *telemetry.Metrics, log *zap.Logger) *Engine {
	limit := rate.Inf
	if cfg.VenueLookupDelay > 0 {
		limit = rate.Every(cfg.VenueLookupDelay)
	}
	return &Engine{
		geocoder: geocoder,
		venues:   venues,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  metrics,
		log:      log.Named("classify"),
	}
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Classify runs the decision sequence for the ping at position idx of
// trip.Sorted(). On error the ping is left unparsed and the error is returned
// for the caller to retry; it wraps domain.ErrCollaborator when a lookup
// service failed.
func (e *Engine) Classify(ctx context.Context, trip *domain.Trip, idx int) (res Result, err error) {
	sorted := trip.Sorted()
	if idx < 0 || idx >= len(sorted) {
		return Result{}, fmt.Errorf("classify.Engine.Classify: index %d out of range [0,%d)", idx, len(sorted))
	}

	ping := sorted[idx]
	var prev, next *domain.Ping
	if idx > 0 {
		prev = sorted[idx-1]
	}
	if idx+1 < len(sorted) {
		next = sorted[idx+1]
	}

	ctx, span := tracer.Start(ctx, "classify.Classify", trace.WithAttributes(
		attribute.String("trip.id", trip.ID.String()),
		attribute.String("ping.id", ping.ID.String()),
	))
	defer func() {
		if err != nil {
			ping.Parsed = false
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
			e.metrics.Classified(string(res.Outcome))
		}
		span.End()
	}()

	if ping.Place == nil {
		place, err := e.geocoder.ReverseGeocode(ctx, ping.Coordinates())
		if err != nil {
			return Result{}, fmt.Errorf("classify.Engine.Classify: %w: reverse geocode: %w", domain.ErrCollaborator, err)
		}
		ping.Place = &place
	}

	if !ping.FromPhoto() && next == nil && trip.IsOpen() {
		return Result{Outcome: OutcomeDeferred, Ping: ping}, nil
	}

	if km, ok := geo.DistanceKm(prev, ping); ok {
		ping.Distance = &km
	} else {
		ping.Distance = nil
	}
	ping.Transport = ping.Transport || e.cfg.InFlight(ping)
	ping.Parsed = true

	if !ping.FromPhoto() && (prev == nil || next == nil || (prev.Transport && ping.Transport)) {
		if prev != nil && prev.Transport {
			domain.MergePing(prev, ping, false)
			return Result{Outcome: OutcomeFolded, Ping: ping, MergedInto: prev}, nil
		}
		return Result{Outcome: OutcomeKept, Ping: ping}, nil
	}

	if !ping.FromPhoto() {
		secs, _ := geo.SecondsBetween(prev, ping)
		if secs < e.cfg.VisitedThreshold().Seconds() {
			return Result{Outcome: OutcomeKept, Ping: ping}, nil
		}
	}

	venue, err := e.findVenue(ctx, ping)
	if err != nil {
		return Result{}, err
	}

	if venue != nil && prev != nil && prev.Venue != nil && prev.Venue.ID == venue.ID {
		ping.Venue = prev.Venue
		domain.MergePing(prev, ping, true)
		e.log.Debug("merged repeated dwell",
			zap.String("trip_id", trip.ID.String()),
			zap.String("venue_id", venue.ID),
		)
		return Result{Outcome: OutcomeSameVenue, Ping: ping, MergedInto: prev}, nil
	}

	if venue != nil {
		ping.Venue = venue
	}
	return Result{Outcome: OutcomeVenue, Ping: ping}, nil
}

// findVenue performs one rate-limited venue lookup.
func (e *Engine) findVenue(ctx context.Context, ping *domain.Ping) (*domain.Venue, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("classify.Engine.findVenue: %w", err)
	}
	venue, err := e.venues.FindVenue(ctx, ping.Coordinates(), ping.Altitude)
	if err != nil {
		e.metrics.VenueLookup("error")
		return nil, fmt.Errorf("classify.Engine.findVenue: %w: %w", domain.ErrCollaborator, err)
	}
	if venue == nil {
		e.metrics.VenueLookup("miss")
	} else {
		e.metrics.VenueLookup("hit")
	}
	return venue, nil
}
