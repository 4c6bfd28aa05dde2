package service_test

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/repo"
)

// fakeTripRepo is an in-memory repo.TripRepo. It stores deep copies so that,
// like the real store, only saved state survives a reload. Set saveErr to
// make Save fail.
type fakeTripRepo struct {
	mu      sync.Mutex
	trips   map[uuid.UUID]*domain.Trip
	saves   int
	saveErr func(trip *domain.Trip) error
}

var _ repo.TripRepo = (*fakeTripRepo)(nil)

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{trips: make(map[uuid.UUID]*domain.Trip)}
}

func (f *fakeTripRepo) Save(_ context.Context, trip *domain.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		if err := f.saveErr(trip); err != nil {
			return err
		}
	}
	if trip.IsOpen() {
		for _, t := range f.trips {
			if t.UserID == trip.UserID && t.IsOpen() && t.ID != trip.ID {
				return domain.ErrState
			}
		}
	}

	now := time.Now()
	if existing, ok := f.trips[trip.ID]; ok {
		trip.CreatedAt = existing.CreatedAt
	} else {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now
	f.trips[trip.ID] = cloneTrip(trip)
	f.saves++
	return nil
}

func (f *fakeTripRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.trips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTrip(t), nil
}

func (f *fakeTripRepo) Latest(_ context.Context, userID string) (*domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *domain.Trip
	for _, t := range f.trips {
		if t.UserID != userID {
			continue
		}
		switch {
		case latest == nil,
			t.IsOpen() && !latest.IsOpen(),
			t.IsOpen() == latest.IsOpen() && t.StartedAt.After(latest.StartedAt):
			latest = t
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneTrip(latest), nil
}

func (f *fakeTripRepo) ListByUser(_ context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
	all := f.filter(func(t *domain.Trip) bool { return t.UserID == userID })
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (f *fakeTripRepo) ListUnparsed(_ context.Context, userID string) ([]*domain.Trip, error) {
	out := f.filter(func(t *domain.Trip) bool {
		return t.UserID == userID && len(t.Unparsed()) > 0
	})
	sortByStart(out)
	return out, nil
}

func (f *fakeTripRepo) ListUnsynced(_ context.Context, userID string) ([]*domain.Trip, error) {
	out := f.filter(func(t *domain.Trip) bool {
		return t.UserID == userID && !t.IsOpen() && (t.Synced == nil || t.UpdatedAt.After(*t.Synced))
	})
	sortByStart(out)
	return out, nil
}

func (f *fakeTripRepo) UsersWithUnparsed(_ context.Context) ([]string, error) {
	var users []string
	for _, t := range f.filter(func(t *domain.Trip) bool { return len(t.Unparsed()) > 0 }) {
		if !slices.Contains(users, t.UserID) {
			users = append(users, t.UserID)
		}
	}
	slices.Sort(users)
	return users, nil
}

func (f *fakeTripRepo) MarkSynced(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.trips[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Synced = &at
	return nil
}

func (f *fakeTripRepo) OwnedPhotoIDs(_ context.Context, userID string, assetIDs []string) ([]string, error) {
	owned := []string{}
	for _, t := range f.filter(func(t *domain.Trip) bool { return t.UserID == userID }) {
		for _, p := range t.Pings {
			for _, ph := range p.Photos {
				if slices.Contains(assetIDs, ph.ID) && !slices.Contains(owned, ph.ID) {
					owned = append(owned, ph.ID)
				}
			}
		}
	}
	slices.Sort(owned)
	return owned, nil
}

func (f *fakeTripRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.trips[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.trips, id)
	return nil
}

// stored returns the saved copy of a trip, or nil.
func (f *fakeTripRepo) stored(id uuid.UUID) *domain.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.trips[id]; ok {
		return cloneTrip(t)
	}
	return nil
}

// byUser returns the saved copies of a user's trips, oldest first.
func (f *fakeTripRepo) byUser(userID string) []*domain.Trip {
	out := f.filter(func(t *domain.Trip) bool { return t.UserID == userID })
	sortByStart(out)
	return out
}

func (f *fakeTripRepo) filter(keep func(*domain.Trip) bool) []*domain.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*domain.Trip{}
	for _, t := range f.trips {
		if keep(t) {
			out = append(out, cloneTrip(t))
		}
	}
	return out
}

func sortByStart(trips []*domain.Trip) {
	sort.Slice(trips, func(i, j int) bool { return trips[i].StartedAt.Before(trips[j].StartedAt) })
}

// cloneTrip deep-copies a trip; pings sharing a venue keep sharing one copy.
func cloneTrip(t *domain.Trip) *domain.Trip {
	c := *t
	c.Pings = make([]*domain.Ping, len(t.Pings))
	venues := make(map[string]*domain.Venue)
	for i, p := range t.Pings {
		pc := *p
		if p.Place != nil {
			place := *p.Place
			pc.Place = &place
		}
		if p.Distance != nil {
			d := *p.Distance
			pc.Distance = &d
		}
		if p.Venue != nil {
			v, ok := venues[p.Venue.ID]
			if !ok {
				vc := *p.Venue
				v = &vc
				venues[v.ID] = v
			}
			pc.Venue = v
		}
		pc.Photos = slices.Clone(p.Photos)
		c.Pings[i] = &pc
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	if t.Synced != nil {
		s := *t.Synced
		c.Synced = &s
	}
	return &c
}
