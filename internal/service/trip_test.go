package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
	"github.com/pkordes/travelog/internal/service"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	save              func(ctx context.Context, trip *domain.Trip) error
	getByID           func(ctx context.Context, id uuid.UUID) (*domain.Trip, error)
	latest            func(ctx context.Context, userID string) (*domain.Trip, error)
	listByUser        func(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error)
	listUnparsed      func(ctx context.Context, userID string) ([]*domain.Trip, error)
	listUnsynced      func(ctx context.Context, userID string) ([]*domain.Trip, error)
	usersWithUnparsed func(ctx context.Context) ([]string, error)
	markSynced        func(ctx context.Context, id uuid.UUID, at time.Time) error
	ownedPhotoIDs     func(ctx context.Context, userID string, assetIDs []string) ([]string, error)
	delete            func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTripRepo) Save(ctx context.Context, trip *domain.Trip) error {
	return m.save(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) Latest(ctx context.Context, userID string) (*domain.Trip, error) {
	return m.latest(ctx, userID)
}
func (m *mockTripRepo) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
	return m.listByUser(ctx, userID, p)
}
func (m *mockTripRepo) ListUnparsed(ctx context.Context, userID string) ([]*domain.Trip, error) {
	return m.listUnparsed(ctx, userID)
}
func (m *mockTripRepo) ListUnsynced(ctx context.Context, userID string) ([]*domain.Trip, error) {
	return m.listUnsynced(ctx, userID)
}
func (m *mockTripRepo) UsersWithUnparsed(ctx context.Context) ([]string, error) {
	return m.usersWithUnparsed(ctx)
}
func (m *mockTripRepo) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.markSynced(ctx, id, at)
}
func (m *mockTripRepo) OwnedPhotoIDs(ctx context.Context, userID string, assetIDs []string) ([]string, error) {
	return m.ownedPhotoIDs(ctx, userID, assetIDs)
}
func (m *mockTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// compile-time check: mockTripRepo must satisfy repo.TripRepo.
var _ repo.TripRepo = (*mockTripRepo)(nil)

func newTripService(r repo.TripRepo) *service.TripService {
	return service.NewTripService(r, service.NewUserLocks(), service.DefaultTrackerConfig())
}

// ---- GetByID ---------------------------------------------------------------

func TestTripService_GetByID_Found(t *testing.T) {
	want := domain.NewTrip("u1", t0)
	r := &mockTripRepo{
		getByID: func(_ context.Context, id uuid.UUID) (*domain.Trip, error) {
			assert.Equal(t, want.ID, id)
			return want, nil
		},
	}

	got, err := newTripService(r).GetByID(context.Background(), "u1", want.ID)

	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestTripService_GetByID_NotFound(t *testing.T) {
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return nil, domain.ErrNotFound },
	}

	_, err := newTripService(r).GetByID(context.Background(), "u1", uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestTripService_GetByID_StoreFailure(t *testing.T) {
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return nil, errors.New("connection refused") },
	}

	_, err := newTripService(r).GetByID(context.Background(), "u1", uuid.New())

	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestTripService_GetByID_OtherUsersTripIsNotFound(t *testing.T) {
	trip := domain.NewTrip("alice", t0)
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return trip, nil },
	}

	_, err := newTripService(r).GetByID(context.Background(), "mallory", trip.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- ListByUser ------------------------------------------------------------

func TestTripService_ListByUser_NilBecomesEmpty(t *testing.T) {
	r := &mockTripRepo{
		listByUser: func(_ context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
			assert.Equal(t, "u1", userID)
			assert.Equal(t, 2, p.Page)
			return nil, 0, nil
		},
	}

	trips, total, err := newTripService(r).ListByUser(context.Background(), "u1", domain.PaginationParams{Page: 2, Limit: 10})

	require.NoError(t, err)
	assert.NotNil(t, trips)
	assert.Empty(t, trips)
	assert.Zero(t, total)
}

func TestTripService_ListByUser_PassesTotal(t *testing.T) {
	r := &mockTripRepo{
		listByUser: func(context.Context, string, domain.PaginationParams) ([]*domain.Trip, int64, error) {
			return []*domain.Trip{domain.NewTrip("u1", t0)}, 41, nil
		},
	}

	trips, total, err := newTripService(r).ListByUser(context.Background(), "u1", domain.NewPaginationParams(nil, nil))

	require.NoError(t, err)
	assert.Len(t, trips, 1)
	assert.Equal(t, int64(41), total)
}

// ---- IsValid ---------------------------------------------------------------

func TestTripService_IsValid(t *testing.T) {
	svc := newTripService(&mockTripRepo{})

	short := domain.NewTrip("u1", t0)
	short.Append(domain.NewPing(london, 0, t0))
	short.Finish(t0.Add(10 * time.Minute))
	assert.False(t, svc.IsValid(short))

	long := domain.NewTrip("u1", t0)
	for i := range 3 {
		long.Append(domain.NewPing(madrid, 0, t0.Add(time.Duration(i)*time.Hour)))
	}
	long.Finish(t0.Add(2 * time.Hour))
	assert.True(t, svc.IsValid(long))
}

// ---- Delete ----------------------------------------------------------------

func TestTripService_Delete(t *testing.T) {
	trip := domain.NewTrip("u1", t0)
	var deleted uuid.UUID
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return trip, nil },
		delete: func(_ context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}

	err := newTripService(r).Delete(context.Background(), "u1", trip.ID)

	require.NoError(t, err)
	assert.Equal(t, trip.ID, deleted)
}

func TestTripService_Delete_NotFound(t *testing.T) {
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return nil, domain.ErrNotFound },
		delete: func(context.Context, uuid.UUID) error {
			t.Fatal("delete must not be called for a missing trip")
			return nil
		},
	}

	err := newTripService(r).Delete(context.Background(), "u1", uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripService_Delete_OtherUsersTripIsNotFound(t *testing.T) {
	trip := domain.NewTrip("alice", t0)
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return trip, nil },
		delete: func(context.Context, uuid.UUID) error {
			t.Fatal("delete must not be called for another user's trip")
			return nil
		},
	}

	err := newTripService(r).Delete(context.Background(), "mallory", trip.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripService_Delete_WaitsForUserLock(t *testing.T) {
	trip := domain.NewTrip("u1", t0)
	locks := service.NewUserLocks()
	deleted := make(chan struct{})
	r := &mockTripRepo{
		getByID: func(context.Context, uuid.UUID) (*domain.Trip, error) { return trip, nil },
		delete: func(context.Context, uuid.UUID) error {
			close(deleted)
			return nil
		},
	}
	svc := service.NewTripService(r, locks, service.DefaultTrackerConfig())

	unlock := locks.Lock("u1")
	errc := make(chan error, 1)
	go func() { errc <- svc.Delete(context.Background(), "u1", trip.ID) }()

	select {
	case <-deleted:
		t.Fatal("delete ran while the user lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	require.NoError(t, <-errc)
	<-deleted
}
