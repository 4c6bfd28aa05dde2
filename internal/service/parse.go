package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/classify"
	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
	"github.com/pkordes/travelog/internal/telemetry"
)

var tracer = otel.Tracer("github.com/pkordes/travelog/internal/service")

// Classifier runs the per-ping decision sequence. *classify.Engine
// satisfies it.
type Classifier interface {
	Classify(ctx context.Context, trip *domain.Trip, idx int) (classify.Result, error)
}

// ParseConfig controls the retry policy of the deferred pass.
type ParseConfig struct {
	// RetryBackoff is the fixed wait before restarting a failed pass.
	RetryBackoff time.Duration

	// MaxRetries bounds the restarts per call; 0 means a single attempt.
	MaxRetries uint64
}

// DefaultParseConfig returns the production retry policy.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{RetryBackoff: 5 * time.Second, MaxRetries: 3}
}

// ParseReport summarises one ParseUnparsedTrips call.
type ParseReport struct {
	Attempts   int `json:"attempts"`
	Trips      int `json:"trips"`
	Classified int `json:"classified"`
	Merged     int `json:"merged"`
	Deferred   int `json:"deferred"`
}

func (r *ParseReport) add(res classify.Result) {
	switch {
	case res.Outcome == classify.OutcomeDeferred:
		r.Deferred++
	case res.Merged():
		r.Classified++
		r.Merged++
	default:
		r.Classified++
	}
}

// ParseService runs the deferred classification pass.
type ParseService struct {
	trips   repo.TripRepo
	engine  Classifier
	locks   *UserLocks
	cfg     ParseConfig
	metrics *telemetry.Metrics
	log     *zap.Logger
}

// NewParseService constructs a ParseService. metrics may be nil.
func NewParseService(trips repo.TripRepo, engine Classifier, locks *UserLocks, cfg ParseConfig, metrics *telemetry.Metrics, log *zap.Logger) *ParseService {
	return &ParseService{
		trips:   trips,
		engine:  engine,
		locks:   locks,
		cfg:     cfg,
		metrics: metrics,
		log:     log.Named("parse"),
	}
}

// ParseUnparsedTrips classifies every unparsed ping of the user's trips, in
// timestamp order per trip. Each classification step is saved before the
// next begins. Any failure aborts the pass; after RetryBackoff the whole pass
// restarts from the store, at most MaxRetries times. Steps committed before
// the failure are not redone because their pings are already parsed.
func (s *ParseService) ParseUnparsedTrips(ctx context.Context, userID string) (ParseReport, error) {
	ctx, span := tracer.Start(ctx, "service.ParseUnparsedTrips")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	var report ParseReport
	wait := max(s.cfg.RetryBackoff, time.Millisecond)
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewConstant(wait))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		report.Attempts++
		if report.Attempts > 1 {
			s.metrics.ParseRetry()
			s.log.Info("restarting parse pass", zap.String("user_id", userID), zap.Int("attempt", report.Attempts))
		}

		err := s.pass(ctx, userID, &report)
		if err == nil {
			return nil
		}
		s.log.Warn("parse pass failed",
			zap.String("user_id", userID),
			zap.String("reason", reason(err)),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("service.ParseService.ParseUnparsedTrips: %w", err)
	}
	return report, nil
}

// RunAll runs ParseUnparsedTrips for every user with pending pings.
// A failing user does not stop the others; their errors are joined.
func (s *ParseService) RunAll(ctx context.Context) error {
	users, err := s.trips.UsersWithUnparsed(ctx)
	if err != nil {
		return storeErr("service.ParseService.RunAll", err)
	}

	var errs []error
	for _, userID := range users {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := s.ParseUnparsedTrips(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Info("parse pass complete",
			zap.String("user_id", userID),
			zap.Int("trips", report.Trips),
			zap.Int("classified", report.Classified),
			zap.Int("merged", report.Merged),
			zap.Int("deferred", report.Deferred),
		)
	}
	return errors.Join(errs...)
}

// pass is one attempt over all of the user's unparsed trips.
func (s *ParseService) pass(ctx context.Context, userID string, report *ParseReport) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	trips, err := s.trips.ListUnparsed(ctx, userID)
	if err != nil {
		return storeErr("list unparsed", err)
	}

	for _, trip := range trips {
		err := classifyTrip(ctx, s.engine, trip, report, func() error {
			if err := s.trips.Save(ctx, trip); err != nil {
				return storeErr("save trip", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("trip %s: %w", trip.ID, err)
		}
		report.Trips++
	}
	return nil
}

// classifyTrip classifies the trip's unparsed pings oldest first and calls
// commit after each step. The index is looked up afresh for every ping
// because a merge shifts the active view.
func classifyTrip(ctx context.Context, engine Classifier, trip *domain.Trip, report *ParseReport, commit func() error) error {
	for _, ping := range trip.Unparsed() {
		if ping.Merged || ping.Parsed {
			continue
		}
		idx := trip.IndexOf(ping.ID)
		if idx < 0 {
			continue
		}

		res, err := engine.Classify(ctx, trip, idx)
		if err != nil {
			return err
		}
		if err := commit(); err != nil {
			return err
		}
		report.add(res)
	}
	return nil
}
