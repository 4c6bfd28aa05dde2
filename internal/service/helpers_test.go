package service_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pkordes/travelog/internal/classify"
	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/service"
)

// ---- collaborator mocks ----------------------------------------------------

// mockGeocoder answers from a table of known cities; reverse picks the
// nearest city within a few tenths of a degree. Set reverse or forward to
// override.
type mockGeocoder struct {
	mu       sync.Mutex
	reverse  func(ctx context.Context, c domain.Coordinates) (domain.Place, error)
	forward  func(ctx context.Context, country, city string) (domain.Coordinates, error)
	reverses int
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinates) (domain.Place, error) {
	m.mu.Lock()
	m.reverses++
	m.mu.Unlock()
	if m.reverse != nil {
		return m.reverse(ctx, c)
	}
	return nearestCity(c), nil
}

func (m *mockGeocoder) ForwardGeocode(ctx context.Context, country, city string) (domain.Coordinates, error) {
	if m.forward != nil {
		return m.forward(ctx, country, city)
	}
	for _, k := range cities {
		if k.place.City == city && k.place.Country == country {
			return k.at, nil
		}
	}
	return domain.Coordinates{}, domain.ErrNotFound
}

func (m *mockGeocoder) reverseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverses
}

type mockVenueFinder struct {
	mu    sync.Mutex
	find  func(ctx context.Context, c domain.Coordinates, altitude float64) (*domain.Venue, error)
	calls int
}

func (m *mockVenueFinder) FindVenue(ctx context.Context, c domain.Coordinates, altitude float64) (*domain.Venue, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.find != nil {
		return m.find(ctx, c, altitude)
	}
	return nil, nil
}

func (m *mockVenueFinder) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var (
	_ service.Geocoder     = (*mockGeocoder)(nil)
	_ classify.VenueFinder = (*mockVenueFinder)(nil)
)

// ---- fixtures --------------------------------------------------------------

type knownCity struct {
	at    domain.Coordinates
	place domain.Place
}

var (
	london  = domain.Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	madrid  = domain.Coordinates{Latitude: 40.4168, Longitude: -3.7038}
	barajas = domain.Coordinates{Latitude: 40.497810, Longitude: -3.568886}
	toledo  = domain.Coordinates{Latitude: 39.8628, Longitude: -4.0273}
	lisbon  = domain.Coordinates{Latitude: 38.7223, Longitude: -9.1393}
)

var cities = []knownCity{
	{london, domain.Place{Country: "United Kingdom", City: "London"}},
	{madrid, domain.Place{Country: "Spain", City: "Madrid"}},
	{barajas, domain.Place{Country: "Spain", City: "Madrid"}},
	{toledo, domain.Place{Country: "Spain", City: "Toledo"}},
	{lisbon, domain.Place{Country: "Portugal", City: "Lisbon"}},
}

func nearestCity(c domain.Coordinates) domain.Place {
	best, bestD := domain.Place{}, math.Inf(1)
	for _, k := range cities {
		d := math.Hypot(k.at.Latitude-c.Latitude, k.at.Longitude-c.Longitude)
		if d < bestD {
			best, bestD = k.place, d
		}
	}
	if bestD > 0.5 {
		return domain.Place{}
	}
	return best
}

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func homeRegion() domain.Region {
	return domain.Region{
		ID:      "home",
		Center:  london,
		RadiusM: 150,
		Place:   &domain.Place{Country: "United Kingdom", City: "London"},
	}
}

// north moves c roughly km kilometres north.
func north(c domain.Coordinates, km float64) domain.Coordinates {
	return domain.Coordinates{Latitude: c.Latitude + km/111.2, Longitude: c.Longitude}
}

func newTestEngine(t *testing.T, g *mockGeocoder, v *mockVenueFinder) *classify.Engine {
	t.Helper()
	cfg := classify.DefaultConfig()
	cfg.VenueLookupDelay = 0
	return classify.NewEngine(g, v, cfg, nil, zaptest.NewLogger(t))
}

func fastParseConfig() service.ParseConfig {
	return service.ParseConfig{RetryBackoff: time.Millisecond, MaxRetries: 3}
}
