// Package syncer carries finished trips between travelog instances over NATS.
//
// Each trip is published as JSON on <prefix>.<user_id>. A Subscriber listens
// on <prefix>.> and hands incoming trips to a TripApplier, which decides
// whether the remote copy wins.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/domain"
)

// OriginHeader names the publishing instance so a subscriber can drop its
// own messages.
const OriginHeader = "Travelog-Origin"

const applyTimeout = 30 * time.Second

// Subject returns the subject a user's trips are published on.
func Subject(prefix, userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, ".*> \t\r\n") {
		return "", fmt.Errorf("%w: user id %q is not a valid subject token", domain.ErrValidation, userID)
	}
	return prefix + "." + userID, nil
}

// Publisher uploads trips. It implements service.TripPublisher.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	origin string
}

// NewPublisher returns a Publisher on nc. origin identifies this instance.
func NewPublisher(nc *nats.Conn, prefix, origin string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix, origin: origin}
}

// PublishTrip sends the trip and waits until the server has received it.
func (p *Publisher) PublishTrip(ctx context.Context, trip *domain.Trip) error {
	subject, err := Subject(p.prefix, trip.UserID)
	if err != nil {
		return fmt.Errorf("syncer.Publisher.PublishTrip: %w", err)
	}
	data, err := json.Marshal(toMessage(trip))
	if err != nil {
		return fmt.Errorf("syncer.Publisher.PublishTrip: marshal trip: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(OriginHeader, p.origin)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("syncer.Publisher.PublishTrip: publish: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("syncer.Publisher.PublishTrip: flush: %w", err)
	}
	return nil
}

// TripApplier stores a remote trip when it wins last-write-wins.
type TripApplier interface {
	Apply(ctx context.Context, remote *domain.Trip) (bool, error)
}

// Subscriber applies trips published by other instances.
type Subscriber struct {
	sub     *nats.Subscription
	applier TripApplier
	prefix  string
	origin  string
	log     *zap.Logger
}

// Subscribe starts delivering trips published under prefix to applier.
// Messages carrying origin in OriginHeader are ignored.
func Subscribe(nc *nats.Conn, prefix, origin string, applier TripApplier, log *zap.Logger) (*Subscriber, error) {
	s := &Subscriber{applier: applier, prefix: prefix, origin: origin, log: log.Named("syncer")}
	sub, err := nc.Subscribe(prefix+".>", s.handle)
	if err != nil {
		return nil, fmt.Errorf("syncer.Subscribe: %w", err)
	}
	// Make sure the server has registered the interest before returning.
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("syncer.Subscribe: flush: %w", err)
	}
	s.sub = sub
	return s, nil
}

// Close drains the subscription so in-flight messages are applied.
func (s *Subscriber) Close() error {
	return s.sub.Drain()
}

func (s *Subscriber) handle(msg *nats.Msg) {
	if msg.Header.Get(OriginHeader) == s.origin {
		return
	}

	var m tripMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		s.log.Warn("malformed trip message", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if m.ID == uuid.Nil {
		s.log.Warn("trip message without id", zap.String("subject", msg.Subject))
		return
	}
	if want, err := Subject(s.prefix, m.UserID); err != nil || want != msg.Subject {
		s.log.Warn("trip message on foreign subject",
			zap.String("subject", msg.Subject),
			zap.String("user_id", m.UserID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	applied, err := s.applier.Apply(ctx, m.trip())
	if err != nil {
		s.log.Error("remote trip not applied",
			zap.String("trip_id", m.ID.String()),
			zap.String("user_id", m.UserID),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("remote trip received",
		zap.String("trip_id", m.ID.String()),
		zap.Bool("applied", applied),
	)
}
