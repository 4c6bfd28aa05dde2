// Package domain contains the core data types for the travel log: trips, the
// pings that make them up, and the venues and photos attached to pings.
// This package has no dependencies on the rest of the module and is imported
// by every other internal package.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Trip is an ordered set of pings bounded by leaving and re-entering the
// user's home region. FinishedAt is nil while the trip is open.
//
// Pings is append-only; tombstoned (merged) pings stay in the slice. Use
// Sorted, First and Last for the authoritative ordering.
type Trip struct {
	ID         uuid.UUID
	UserID     string
	Pings      []*Ping
	StartedAt  time.Time
	FinishedAt *time.Time

	// Synced is the time of the last successful upload to the remote store.
	Synced *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrip returns an open trip for userID starting at startedAt.
func NewTrip(userID string, startedAt time.Time) *Trip {
	return &Trip{
		ID:        uuid.New(),
		UserID:    userID,
		StartedAt: startedAt,
	}
}

// IsOpen reports whether the trip has not been finished yet.
func (t *Trip) IsOpen() bool {
	return t.FinishedAt == nil
}

// Finish closes the trip at the given time.
func (t *Trip) Finish(at time.Time) {
	t.FinishedAt = &at
}

// Append adds a ping to the trip and takes ownership of it.
func (t *Trip) Append(p *Ping) {
	p.TripID = t.ID
	t.Pings = append(t.Pings, p)
}

// Active returns the non-merged pings in insertion order.
func (t *Trip) Active() []*Ping {
	out := make([]*Ping, 0, len(t.Pings))
	for _, p := range t.Pings {
		if !p.Merged {
			out = append(out, p)
		}
	}
	return out
}

// Sorted returns the active pings ordered by timestamp. Pings with equal
// timestamps keep their insertion order, so sorting is stable across calls.
func (t *Trip) Sorted() []*Ping {
	out := t.Active()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// First returns the earliest active ping, or nil for an empty trip.
func (t *Trip) First() *Ping {
	s := t.Sorted()
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// Last returns the latest active ping, or nil for an empty trip.
func (t *Trip) Last() *Ping {
	s := t.Sorted()
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// Unparsed returns the active pings that still need classification, in
// timestamp order.
func (t *Trip) Unparsed() []*Ping {
	var out []*Ping
	for _, p := range t.Sorted() {
		if !p.Parsed {
			out = append(out, p)
		}
	}
	return out
}

// FullyParsed reports whether every active ping has been classified.
func (t *Trip) FullyParsed() bool {
	for _, p := range t.Active() {
		if !p.Parsed {
			return false
		}
	}
	return true
}

// IndexOf returns the position of the ping with the given ID in Sorted, or -1
// when it is absent or merged.
func (t *Trip) IndexOf(id uuid.UUID) int {
	for i, p := range t.Sorted() {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Duration is the time between start and finish. Zero while the trip is open.
func (t *Trip) Duration() time.Duration {
	if t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// IsValid reports whether a finished trip is long enough and dense enough to
// keep. Open trips are always valid. Invalid trips are eligible for discard.
func (t *Trip) IsValid(minDuration time.Duration, minPings int) bool {
	if t.IsOpen() {
		return true
	}
	return t.Duration() >= minDuration && len(t.Active()) >= minPings
}
