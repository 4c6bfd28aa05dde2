package syncer

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/travelog/internal/domain"
)

// tripMessage is the wire form of a trip. Merged pings travel with the trip
// so the receiving side stores the same aggregate.
type tripMessage struct {
	ID         uuid.UUID     `json:"id"`
	UserID     string        `json:"user_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Synced     *time.Time    `json:"synced,omitempty"`
	Pings      []pingMessage `json:"pings"`
}

type pingMessage struct {
	ID        uuid.UUID      `json:"id"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Altitude  float64        `json:"altitude"`
	Timestamp time.Time      `json:"timestamp"`
	Country   *string        `json:"country,omitempty"`
	City      *string        `json:"city,omitempty"`
	Distance  *float64       `json:"distance_km,omitempty"`
	Transport bool           `json:"transport"`
	Venue     *venueMessage  `json:"venue,omitempty"`
	Photos    []photoMessage `json:"photos,omitempty"`
	Parsed    bool           `json:"parsed"`
	Merged    bool           `json:"merged"`
}

type venueMessage struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Category    string                `json:"category,omitempty"`
	Contact     *domain.VenueContact  `json:"contact,omitempty"`
	Location    *domain.VenueLocation `json:"location,omitempty"`
	URL         *string               `json:"url,omitempty"`
	Description *string               `json:"description,omitempty"`
	Hours       *domain.VenueHours    `json:"hours,omitempty"`
}

type photoMessage struct {
	ID         string  `json:"id"`
	URI        string  `json:"uri"`
	StorageRef *string `json:"storage_ref,omitempty"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
}

func toMessage(t *domain.Trip) tripMessage {
	m := tripMessage{
		ID:         t.ID,
		UserID:     t.UserID,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Synced:     t.Synced,
		Pings:      make([]pingMessage, 0, len(t.Pings)),
	}
	for _, p := range t.Pings {
		pm := pingMessage{
			ID:        p.ID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Altitude:  p.Altitude,
			Timestamp: p.Timestamp,
			Distance:  p.Distance,
			Transport: p.Transport,
			Parsed:    p.Parsed,
			Merged:    p.Merged,
		}
		if p.Place != nil {
			pm.Country = &p.Place.Country
			pm.City = &p.Place.City
		}
		if v := p.Venue; v != nil {
			pm.Venue = &venueMessage{
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
			pm.Photos = append(pm.Photos, photoMessage(ph))
		}
		m.Pings = append(m.Pings, pm)
	}
	return m
}

// trip rebuilds the aggregate. Pings naming the same venue share one Venue.
func (m tripMessage) trip() *domain.Trip {
	t := &domain.Trip{
		ID:         m.ID,
		UserID:     m.UserID,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Synced:     m.Synced,
	}
	venues := make(map[string]*domain.Venue)
	for _, pm := range m.Pings {
		p := &domain.Ping{
			ID:        pm.ID,
			TripID:    m.ID,
			Latitude:  pm.Latitude,
			Longitude: pm.Longitude,
			Altitude:  pm.Altitude,
			Timestamp: pm.Timestamp,
			Distance:  pm.Distance,
			Transport: pm.Transport,
			Parsed:    pm.Parsed,
			Merged:    pm.Merged,
		}
		if pm.Country != nil {
			p.Place = &domain.Place{Country: *pm.Country}
			if pm.City != nil {
				p.Place.City = *pm.City
			}
		}
		if vm := pm.Venue; vm != nil {
			v, ok := venues[vm.ID]
			if !ok {
				v = &domain.Venue{
					ID:          vm.ID,
					Name:        vm.Name,
					Category:    vm.Category,
					Contact:     vm.Contact,
					Location:    vm.Location,
					URL:         vm.URL,
					Description: vm.Description,
					Hours:       vm.Hours,
				}
				venues[v.ID] = v
			}
			p.Venue = v
		}
		for _, ph := range pm.Photos {
			p.Photos = append(p.Photos, domain.Photo(ph))
		}
		t.Pings = append(t.Pings, p)
	}
	return t
}
