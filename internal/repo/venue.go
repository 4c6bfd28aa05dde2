package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/travelog/internal/domain"
)

// venueColumns selects a venue through the pings LEFT JOIN, so every column
// may be NULL.
const venueColumns = `v.id, v.name, v.category, v.contact, v.location, v.url, v.description, v.hours`

// upsertVenue inserts a venue by provider id, or refreshes the stored copy.
// One row exists per venue; pings reference it by id.
func upsertVenue(ctx context.Context, q querier, v *domain.Venue) error {
	const stmt = `
		INSERT INTO venues (id, name, category, contact, location, url, description, hours)
		VALUES (@id, @name, @category, @contact, @location, @url, @description, @hours)
		ON CONFLICT (id) DO UPDATE
		SET name        = EXCLUDED.name,
		    category    = EXCLUDED.category,
		    contact     = EXCLUDED.contact,
		    location    = EXCLUDED.location,
		    url         = EXCLUDED.url,
		    description = EXCLUDED.description,
		    hours       = EXCLUDED.hours,
		    updated_at  = now()`

	contact, err := marshalOptional(v.Contact)
	if err != nil {
		return fmt.Errorf("venue %s: contact: %w", v.ID, err)
	}
	location, err := marshalOptional(v.Location)
	if err != nil {
		return fmt.Errorf("venue %s: location: %w", v.ID, err)
	}
	hours, err := marshalOptional(v.Hours)
	if err != nil {
		return fmt.Errorf("venue %s: hours: %w", v.ID, err)
	}

	args := pgx.NamedArgs{
		"id":          v.ID,
		"name":        v.Name,
		"category":    v.Category,
		"contact":     contact,
		"location":    location,
		"url":         v.URL,
		"description": v.Description,
		"hours":       hours,
	}
	if _, err := q.Exec(ctx, stmt, args); err != nil {
		return fmt.Errorf("venue %s: %w", v.ID, err)
	}
	return nil
}

// venueRow holds the nullable scan targets for venueColumns.
type venueRow struct {
	id, name, category *string
	contact, location  []byte
	url, description   *string
	hours              []byte
}

func (r *venueRow) dest() []any {
	return []any{&r.id, &r.name, &r.category, &r.contact, &r.location, &r.url, &r.description, &r.hours}
}

// venue returns nil when the join found no venue.
func (r *venueRow) venue() (*domain.Venue, error) {
	if r.id == nil {
		return nil, nil
	}
	v := &domain.Venue{ID: *r.id, URL: r.url, Description: r.description}
	if r.name != nil {
		v.Name = *r.name
	}
	if r.category != nil {
		v.Category = *r.category
	}

	var err error
	if v.Contact, err = unmarshalOptional[domain.VenueContact](r.contact); err != nil {
		return nil, fmt.Errorf("venue %s: contact: %w", v.ID, err)
	}
	if v.Location, err = unmarshalOptional[domain.VenueLocation](r.location); err != nil {
		return nil, fmt.Errorf("venue %s: location: %w", v.ID, err)
	}
	if v.Hours, err = unmarshalOptional[domain.VenueHours](r.hours); err != nil {
		return nil, fmt.Errorf("venue %s: hours: %w", v.ID, err)
	}
	return v, nil
}

// marshalOptional encodes a nullable structured field as JSONB; nil stays NULL.
func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](raw []byte) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
