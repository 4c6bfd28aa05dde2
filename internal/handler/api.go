package handler

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/service"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// PingRequest is a location sample. Timestamp is epoch milliseconds; when
// absent the server time is used.
type PingRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

func (p PingRequest) sample() (service.LocationSample, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return service.LocationSample{}, errors.New("latitude and longitude are required")
	}
	s := service.LocationSample{
		Coordinates: domain.Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude},
		Altitude:    p.Altitude,
	}
	if p.Timestamp != nil {
		s.Timestamp = time.UnixMilli(*p.Timestamp).UTC()
	}
	return s, nil
}

// RegionRequest is the geofence a transition event refers to. Country and
// City are the place the geofence was registered for, when known.
type RegionRequest struct {
	ID        string   `json:"id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RadiusM   float64  `json:"radius_m"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
}

func (r RegionRequest) region() (domain.Region, error) {
	if r.Latitude == nil || r.Longitude == nil {
		return domain.Region{}, errors.New("latitude and longitude are required")
	}
	region := domain.Region{
		ID:      r.ID,
		Center:  domain.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude},
		RadiusM: r.RadiusM,
	}
	if r.Country != "" {
		region.Place = &domain.Place{Country: r.Country, City: r.City}
	}
	return region, nil
}

// OutcomeResponse reports what an event did. Dropped events are answered
// with 200 and applied=false: the reason is informational only.
type OutcomeResponse struct {
	Applied bool       `json:"applied"`
	Kind    string     `json:"kind"`
	TripID  *uuid.UUID `json:"trip_id,omitempty"`
	PingID  *uuid.UUID `json:"ping_id,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

func outcomeToResponse(o service.Outcome) OutcomeResponse {
	resp := OutcomeResponse{Applied: o.Applied, Kind: string(o.Kind), Reason: o.Reason()}
	if o.TripID != uuid.Nil {
		id := o.TripID
		resp.TripID = &id
	}
	if o.PingID != uuid.Nil {
		id := o.PingID
		resp.PingID = &id
	}
	return resp
}

// PhotoImportRequest is a snapshot of the user's photo library together with
// the home place trips are measured against.
type PhotoImportRequest struct {
	Home   HomeRequest    `json:"home"`
	Assets []AssetRequest `json:"assets"`
}

// HomeRequest is the user's home. Coordinates are geocoded from the place
// when omitted.
type HomeRequest struct {
	Country   string   `json:"country"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// AssetRequest is one library photo. Photos without coordinates are skipped
// by the correlator.
type AssetRequest struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Altitude  float64   `json:"altitude"`
}

func (h HomeRequest) home() (service.Home, error) {
	if h.Country == "" {
		return service.Home{}, errors.New("home country is required")
	}
	home := service.Home{Place: domain.Place{Country: h.Country, City: h.City}}
	switch {
	case h.Latitude != nil && h.Longitude != nil:
		home.Coordinates = &domain.Coordinates{Latitude: *h.Latitude, Longitude: *h.Longitude}
	case h.Latitude != nil || h.Longitude != nil:
		return service.Home{}, errors.New("home latitude and longitude must be given together")
	}
	return home, nil
}

func (a AssetRequest) asset() domain.Asset {
	out := domain.Asset{ID: a.ID, URI: a.URI, CreatedAt: a.CreatedAt.UTC(), Altitude: a.Altitude}
	if a.Latitude != nil && a.Longitude != nil {
		out.Location = &domain.Coordinates{Latitude: *a.Latitude, Longitude: *a.Longitude}
	}
	return out
}

// Trip is the API representation of a trip. Pings holds the active pings
// in timestamp order.
type Trip struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"user_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Synced     *time.Time `json:"synced,omitempty"`
	IsOpen     bool       `json:"is_open"`
	IsValid    bool       `json:"is_valid"`
	Pings      []Ping     `json:"pings"`
}

// Ping is the API representation of an active ping.
type Ping struct {
	ID         uuid.UUID `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	Timestamp  time.Time `json:"timestamp"`
	Country    *string   `json:"country,omitempty"`
	City       *string   `json:"city,omitempty"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
	Transport  bool      `json:"transport"`
	Parsed     bool      `json:"parsed"`
	Venue      *Venue    `json:"venue,omitempty"`
	Photos     []Photo   `json:"photos"`
}

// Venue is the API representation of a venue.
type Venue struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Category    string                `json:"category,omitempty"`
	Contact     *domain.VenueContact  `json:"contact,omitempty"`
	Location    *domain.VenueLocation `json:"location,omitempty"`
	URL         *string               `json:"url,omitempty"`
	Description *string               `json:"description,omitempty"`
	Hours       *domain.VenueHours    `json:"hours,omitempty"`
}

// Photo is the API representation of a photo attached to a ping.
type Photo struct {
	ID         string  `json:"id"`
	URI        string  `json:"uri"`
	StorageRef *string `json:"storage_ref,omitempty"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
}

// TripList is a page of trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page returned and the total number of trips.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// tripToResponse converts a domain.Trip into its API representation.
func tripToResponse(t *domain.Trip, valid bool) Trip {
	resp := Trip{
		ID:         t.ID,
		UserID:     t.UserID,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Synced:     t.Synced,
		IsOpen:     t.IsOpen(),
		IsValid:    valid,
		Pings:      []Ping{},
	}
	for _, p := range t.Sorted() {
		resp.Pings = append(resp.Pings, pingToResponse(p))
	}
	return resp
}

func pingToResponse(p *domain.Ping) Ping {
	resp := Ping{
		ID:         p.ID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Altitude:   p.Altitude,
		Timestamp:  p.Timestamp,
		DistanceKm: p.Distance,
		Transport:  p.Transport,
		Parsed:     p.Parsed,
		Photos:     make([]Photo, 0, len(p.Photos)),
	}
	if p.Place != nil {
		country, city := p.Place.Country, p.Place.City
		resp.Country = &country
		if city != "" {
			resp.City = &city
		}
	}
	if v := p.Venue; v != nil {
		resp.Venue = &Venue{
			ID:          v.ID,
			Name:        v.Name,
			Category:    v.Category,
			Contact:     v.Contact,
			Location:    v.Location,
			URL:         v.URL,
			Description: v.Description,
			Hours:       v.Hours,
		}
	}
	for _, ph := range p.Photos {
		resp.Photos = append(resp.Photos, Photo(ph))
	}
	return resp
}
