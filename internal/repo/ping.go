package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/travelog/internal/domain"
)

// savePings upserts every ping of the trip, the venues they reference and
// the photos they own. Must run inside the Save transaction.
func savePings(ctx context.Context, q querier, trip *domain.Trip) error {
	seen := make(map[string]bool)
	for _, p := range trip.Pings {
		if p.Venue == nil || seen[p.Venue.ID] {
			continue
		}
		if err := upsertVenue(ctx, q, p.Venue); err != nil {
			return err
		}
		seen[p.Venue.ID] = true
	}

	const pingQ = `
		INSERT INTO pings (
			id, trip_id, position, latitude, longitude, altitude, recorded_at,
			country, city, distance_km, transport, venue_id, parsed, merged
		) VALUES (
			@id, @trip_id, @position, @latitude, @longitude, @altitude, @recorded_at,
			@country, @city, @distance_km, @transport, @venue_id, @parsed, @merged
		)
		ON CONFLICT (id) DO UPDATE
		SET trip_id     = EXCLUDED.trip_id,
		    position    = EXCLUDED.position,
		    latitude    = EXCLUDED.latitude,
		    longitude   = EXCLUDED.longitude,
		    altitude    = EXCLUDED.altitude,
		    recorded_at = EXCLUDED.recorded_at,
		    country     = EXCLUDED.country,
		    city        = EXCLUDED.city,
		    distance_km = EXCLUDED.distance_km,
		    transport   = EXCLUDED.transport,
		    venue_id    = EXCLUDED.venue_id,
		    parsed      = EXCLUDED.parsed,
		    merged      = EXCLUDED.merged`

	for i, p := range trip.Pings {
		args := pgx.NamedArgs{
			"id":          p.ID,
			"trip_id":     trip.ID,
			"position":    i,
			"latitude":    p.Latitude,
			"longitude":   p.Longitude,
			"altitude":    p.Altitude,
			"recorded_at": p.Timestamp,
			"country":     nil,
			"city":        nil,
			"distance_km": p.Distance,
			"transport":   p.Transport,
			"venue_id":    nil,
			"parsed":      p.Parsed,
			"merged":      p.Merged,
		}
		if p.Place != nil {
			args["country"] = p.Place.Country
			args["city"] = p.Place.City
		}
		if p.Venue != nil {
			args["venue_id"] = p.Venue.ID
		}
		if _, err := q.Exec(ctx, pingQ, args); err != nil {
			return fmt.Errorf("ping %s: %w", p.ID, err)
		}
	}

	ids := uuidStrings(trip.Pings, func(p *domain.Ping) uuid.UUID { return p.ID })

	// Pings dropped from the aggregate (a remote copy replacing this one) go away.
	const pruneQ = `DELETE FROM pings WHERE trip_id = @trip_id AND NOT (id = ANY(@ids::uuid[]))`
	if _, err := q.Exec(ctx, pruneQ, pgx.NamedArgs{"trip_id": trip.ID, "ids": ids}); err != nil {
		return fmt.Errorf("prune pings: %w", err)
	}

	// Photos follow their owning ping; a merge moves them, so rewrite the set.
	// Rows are keyed per ping, so another trip holding the same asset id keeps it.
	const clearQ = `DELETE FROM photos WHERE ping_id = ANY(@ids::uuid[])`
	if _, err := q.Exec(ctx, clearQ, pgx.NamedArgs{"ids": ids}); err != nil {
		return fmt.Errorf("clear photos: %w", err)
	}

	const photoQ = `
		INSERT INTO photos (id, ping_id, position, uri, storage_ref, thumbnail)
		VALUES (@id, @ping_id, @position, @uri, @storage_ref, @thumbnail)
		ON CONFLICT (ping_id, id) DO NOTHING`

	for _, p := range trip.Pings {
		for i, ph := range p.Photos {
			args := pgx.NamedArgs{
				"id":          ph.ID,
				"ping_id":     p.ID,
				"position":    i,
				"uri":         ph.URI,
				"storage_ref": ph.StorageRef,
				"thumbnail":   ph.Thumbnail,
			}
			if _, err := q.Exec(ctx, photoQ, args); err != nil {
				return fmt.Errorf("photo %s: %w", ph.ID, err)
			}
		}
	}
	return nil
}

// loadPings fills in Pings for each trip, sharing one *domain.Venue per
// venue id across all of them.
func loadPings(ctx context.Context, q querier, trips ...*domain.Trip) error {
	if len(trips) == 0 {
		return nil
	}
	byTrip := make(map[uuid.UUID]*domain.Trip, len(trips))
	for _, t := range trips {
		t.Pings = nil
		byTrip[t.ID] = t
	}
	tripIDs := uuidStrings(trips, func(t *domain.Trip) uuid.UUID { return t.ID })

	const pingQ = `
		SELECT p.id, p.trip_id, p.latitude, p.longitude, p.altitude, p.recorded_at,
		       p.country, p.city, p.distance_km, p.transport, p.parsed, p.merged,
		       ` + venueColumns + `
		FROM pings p
		LEFT JOIN venues v ON v.id = p.venue_id
		WHERE p.trip_id = ANY(@ids::uuid[])
		ORDER BY p.trip_id, p.position`

	rows, err := q.Query(ctx, pingQ, pgx.NamedArgs{"ids": tripIDs})
	if err != nil {
		return fmt.Errorf("load pings: %w", err)
	}
	defer rows.Close()

	venues := make(map[string]*domain.Venue)
	byPing := make(map[uuid.UUID]*domain.Ping)
	for rows.Next() {
		p, v, err := scanPing(rows)
		if err != nil {
			return fmt.Errorf("load pings: scan: %w", err)
		}
		if v != nil {
			if shared, ok := venues[v.ID]; ok {
				v = shared
			} else {
				venues[v.ID] = v
			}
			p.Venue = v
		}
		t := byTrip[p.TripID]
		t.Pings = append(t.Pings, p)
		byPing[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load pings: rows: %w", err)
	}
	rows.Close()

	if len(byPing) == 0 {
		return nil
	}
	return loadPhotos(ctx, q, byPing)
}

// loadPhotos attaches photos to their owning pings in stored order.
func loadPhotos(ctx context.Context, q querier, byPing map[uuid.UUID]*domain.Ping) error {
	ids := make([]string, 0, len(byPing))
	for id := range byPing {
		ids = append(ids, id.String())
	}

	const photoQ = `
		SELECT ping_id, id, uri, storage_ref, thumbnail
		FROM photos
		WHERE ping_id = ANY(@ids::uuid[])
		ORDER BY ping_id, position`

	rows, err := q.Query(ctx, photoQ, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return fmt.Errorf("load photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pingID pgtype.UUID
			ph     domain.Photo
		)
		if err := rows.Scan(&pingID, &ph.ID, &ph.URI, &ph.StorageRef, &ph.Thumbnail); err != nil {
			return fmt.Errorf("load photos: scan: %w", err)
		}
		if p, ok := byPing[uuid.UUID(pingID.Bytes)]; ok {
			p.Photos = append(p.Photos, ph)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load photos: rows: %w", err)
	}
	return nil
}

// scanPing maps a pings row joined with venues.
func scanPing(s scanner) (*domain.Ping, *domain.Venue, error) {
	var (
		p       domain.Ping
		id      pgtype.UUID
		tripID  pgtype.UUID
		country *string
		city    *string
		vr      venueRow
	)

	dest := []any{
		&id, &tripID, &p.Latitude, &p.Longitude, &p.Altitude, &p.Timestamp,
		&country, &city, &p.Distance, &p.Transport, &p.Parsed, &p.Merged,
	}
	if err := s.Scan(append(dest, vr.dest()...)...); err != nil {
		return nil, nil, err
	}

	p.ID = uuid.UUID(id.Bytes)
	p.TripID = uuid.UUID(tripID.Bytes)
	if country != nil {
		p.Place = &domain.Place{Country: *country}
		if city != nil {
			p.Place.City = *city
		}
	}

	v, err := vr.venue()
	if err != nil {
		return nil, nil, err
	}
	return &p, v, nil
}

// ownedPhotoIDs returns the subset of assetIDs attached to any ping of the
// user's trips.
func ownedPhotoIDs(ctx context.Context, q querier, userID string, assetIDs []string) ([]string, error) {
	const ownedQ = `
		SELECT DISTINCT ph.id
		FROM photos ph
		JOIN pings p ON p.id = ph.ping_id
		JOIN trips t ON t.id = p.trip_id
		WHERE t.user_id = @user_id
		  AND ph.id = ANY(@ids::text[])
		ORDER BY ph.id`

	rows, err := q.Query(ctx, ownedQ, pgx.NamedArgs{"user_id": userID, "ids": assetIDs})
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ids, nil
}
