// Package repo contains all database access logic for travelog.
// A trip is persisted as one aggregate: the trip row, its pings, the venues
// they reference and the photos they own. No business logic lives here.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/travelog/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test. Begin on a
// pgx.Tx opens a savepoint, so Save stays atomic in both cases.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is the subset of db available inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// TripRepo defines the persistence operations for trips.
// Every method returns trips with all pings, merged ones included, in
// insertion order; callers use domain.Trip views to filter and sort.
type TripRepo interface {
	// Save writes the whole trip aggregate in one transaction: the trip row,
	// every ping, the venues they reference and the photos they own.
	// Returns domain.ErrState if saving would leave the user with two open trips.
	Save(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by its UUID.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Trip, error)

	// Latest returns the user's most recently started trip.
	// Returns domain.ErrNotFound if the user has no trips.
	Latest(ctx context.Context, userID string) (*domain.Trip, error)

	// ListByUser returns one page of the user's trips, most recent first,
	// and the total count.
	ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error)

	// ListUnparsed returns the user's trips holding at least one active
	// unparsed ping, oldest first.
	ListUnparsed(ctx context.Context, userID string) ([]*domain.Trip, error)

	// ListUnsynced returns the user's finished trips that changed since they
	// were last synced, oldest first.
	ListUnsynced(ctx context.Context, userID string) ([]*domain.Trip, error)

	// UsersWithUnparsed returns the IDs of users that have trips with
	// active unparsed pings.
	UsersWithUnparsed(ctx context.Context) ([]string, error)

	// MarkSynced stamps the trip's synced time without touching updated_at.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error

	// OwnedPhotoIDs returns which of assetIDs already belong to a ping of
	// one of the user's trips. Other users' photos never match.
	OwnedPhotoIDs(ctx context.Context, userID string, assetIDs []string) ([]string, error)

	// Delete removes a trip and, by cascade, its pings and photos.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, user_id, started_at, finished_at, synced_at, created_at, updated_at`

// Save upserts the aggregate. Pings are never physically removed here;
// merged pings are written with merged = true.
func (r *pgTripRepo) Save(ctx context.Context, trip *domain.Trip) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Save: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const q = `
		INSERT INTO trips (id, user_id, started_at, finished_at, synced_at)
		VALUES (@id, @user_id, @started_at, @finished_at, @synced_at)
		ON CONFLICT (id) DO UPDATE
		SET started_at  = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at,
		    synced_at   = EXCLUDED.synced_at,
		    updated_at  = now()
		RETURNING created_at, updated_at`

	args := pgx.NamedArgs{
		"id":          trip.ID,
		"user_id":     trip.UserID,
		"started_at":  trip.StartedAt,
		"finished_at": trip.FinishedAt, // nil becomes NULL
		"synced_at":   trip.Synced,
	}

	var createdAt, updatedAt time.Time
	if err = tx.QueryRow(ctx, q, args).Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = fmt.Errorf("repo.TripRepo.Save: %w: user %s already has an open trip", domain.ErrState, trip.UserID)
			return err
		}
		err = fmt.Errorf("repo.TripRepo.Save: trip: %w", err)
		return err
	}

	if err = savePings(ctx, tx, trip); err != nil {
		err = fmt.Errorf("repo.TripRepo.Save: %w", err)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("repo.TripRepo.Save: commit: %w", err)
		return err
	}

	trip.CreatedAt = createdAt
	trip.UpdatedAt = updatedAt
	return nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	trip, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	if err := loadPings(ctx, r.db, trip); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return trip, nil
}

// Latest returns the user's most recently started trip.
func (r *pgTripRepo) Latest(ctx context.Context, userID string) (*domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE user_id = @user_id
		ORDER BY finished_at IS NULL DESC, started_at DESC
		LIMIT 1`

	trip, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.Latest: %w", err)
	}
	if err := loadPings(ctx, r.db, trip); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.Latest: %w", err)
	}
	return trip, nil
}

// ListByUser returns one page of trips ordered by started_at descending.
func (r *pgTripRepo) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
	const countQ = `SELECT count(*) FROM trips WHERE user_id = @user_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"user_id": userID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByUser: count: %w", err)
	}

	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE user_id = @user_id
		ORDER BY started_at DESC
		LIMIT @limit OFFSET @offset`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{
		"user_id": userID,
		"limit":   p.Limit,
		"offset":  p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByUser: %w", err)
	}
	return trips, total, nil
}

// ListUnparsed returns trips with any active unparsed ping.
func (r *pgTripRepo) ListUnparsed(ctx context.Context, userID string) ([]*domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.user_id = @user_id
		  AND EXISTS (
			SELECT 1 FROM pings p
			WHERE p.trip_id = t.id AND NOT p.parsed AND NOT p.merged
		  )
		ORDER BY t.started_at`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListUnparsed: %w", err)
	}
	return trips, nil
}

// ListUnsynced returns finished trips never synced or changed since.
func (r *pgTripRepo) ListUnsynced(ctx context.Context, userID string) ([]*domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE user_id = @user_id
		  AND finished_at IS NOT NULL
		  AND (synced_at IS NULL OR updated_at > synced_at)
		ORDER BY started_at`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListUnsynced: %w", err)
	}
	return trips, nil
}

// UsersWithUnparsed lists distinct users owning unparsed pings.
func (r *pgTripRepo) UsersWithUnparsed(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT t.user_id
		FROM trips t
		JOIN pings p ON p.trip_id = t.id
		WHERE NOT p.parsed AND NOT p.merged
		ORDER BY t.user_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.UsersWithUnparsed: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.UsersWithUnparsed: rows: %w", err)
	}
	return users, nil
}

// MarkSynced sets synced_at on a trip.
func (r *pgTripRepo) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE trips SET synced_at = @at WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "at": at})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.MarkSynced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.MarkSynced: %w", domain.ErrNotFound)
	}
	return nil
}

// OwnedPhotoIDs looks the asset ids up across the user's trips.
func (r *pgTripRepo) OwnedPhotoIDs(ctx context.Context, userID string, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return []string{}, nil
	}
	ids, err := ownedPhotoIDs(ctx, r.db, userID, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.OwnedPhotoIDs: %w", err)
	}
	return ids, nil
}

// Delete removes a trip by primary key.
func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// queryTrips runs a trip-row query and loads every trip's pings.
func (r *pgTripRepo) queryTrips(ctx context.Context, q string, args pgx.NamedArgs) ([]*domain.Trip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []*domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	rows.Close()

	if err := loadPings(ctx, r.db, trips...); err != nil {
		return nil, err
	}
	return trips, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a trips row into a domain.Trip without pings.
func scanTrip(s scanner) (*domain.Trip, error) {
	var (
		t  domain.Trip
		id pgtype.UUID
	)

	err := s.Scan(&id, &t.UserID, &t.StartedAt, &t.FinishedAt, &t.Synced, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	t.ID = uuid.UUID(id.Bytes)
	return &t, nil
}

// uuidStrings converts ids for use with an ANY(@ids::uuid[]) predicate.
func uuidStrings[T any](items []T, id func(T) uuid.UUID) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it).String()
	}
	return out
}
