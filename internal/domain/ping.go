package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ping is one observed or photo-derived location sample within a trip.
//
// Distance, Transport and Venue are only meaningful once Parsed is true.
// A ping that has been folded into a neighbour is tombstoned with Merged and
// kept in the trip; every active view filters it out.
type Ping struct {
	ID        uuid.UUID
	TripID    uuid.UUID
	Latitude  float64
	Longitude float64
	Altitude  float64 // meters
	Timestamp time.Time

	// Place is nil until the ping has been reverse geocoded.
	Place *Place

	// Distance is the great-circle distance in km from the previous ping.
	Distance  *float64
	Transport bool
	Venue     *Venue
	Photos    []Photo

	Parsed bool
	Merged bool
}

// NewPing returns an unparsed ping with a fresh ID.
func NewPing(c Coordinates, altitude float64, at time.Time) *Ping {
	return &Ping{
		ID:        uuid.New(),
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Altitude:  altitude,
		Timestamp: at,
	}
}

// Coordinates returns the ping's position.
func (p *Ping) Coordinates() Coordinates {
	return Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
}

// FromPhoto reports whether the ping carries photos, i.e. it was produced by
// the photo correlator or absorbed a photo-derived ping through a merge.
func (p *Ping) FromPhoto() bool {
	return len(p.Photos) > 0
}

// HasPhoto reports whether the ping already owns the photo with the given ID.
func (p *Ping) HasPhoto(id string) bool {
	for _, ph := range p.Photos {
		if ph.ID == id {
			return true
		}
	}
	return false
}

// MergePing folds src into dest and tombstones src.
//
// dest takes src's timestamp, transport flag, venue and photos. Photos move
// rather than copy so each photo keeps a single owner. With withCoords set,
// dest also takes src's position and resolved place.
//
// Merging the same pair again leaves dest unchanged.
func MergePing(dest, src *Ping, withCoords bool) {
	dest.Timestamp = src.Timestamp
	dest.Transport = src.Transport
	dest.Venue = src.Venue
	for _, ph := range src.Photos {
		if !dest.HasPhoto(ph.ID) {
			dest.Photos = append(dest.Photos, ph)
		}
	}
	src.Photos = nil

	if withCoords {
		dest.Latitude = src.Latitude
		dest.Longitude = src.Longitude
		dest.Altitude = src.Altitude
		dest.Place = src.Place
	}

	src.Merged = true
}
