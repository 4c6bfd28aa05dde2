package geo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/geo"
)

var (
	london = domain.Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	madrid = domain.Coordinates{Latitude: 40.497810, Longitude: -3.568886}
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	// London to Madrid-Barajas is roughly 1250 km.
	assert.InDelta(t, 1252, geo.HaversineKm(london, madrid), 15)

	// 0.001 degrees in both axes in the Alps is ~135 m.
	short := geo.HaversineKm(
		domain.Coordinates{Latitude: 46.0, Longitude: 7.0},
		domain.Coordinates{Latitude: 46.001, Longitude: 7.001},
	)
	assert.InDelta(t, 0.135, short, 0.01)
}

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	assert.Zero(t, geo.HaversineKm(london, london))
}

func TestDistanceKm_NilPing(t *testing.T) {
	p := domain.NewPing(london, 0, time.Now())

	_, ok := geo.DistanceKm(nil, p)
	assert.False(t, ok)
	_, ok = geo.DistanceKm(p, nil)
	assert.False(t, ok)
}

func TestDistanceKm(t *testing.T) {
	a := domain.NewPing(london, 0, time.Now())
	b := domain.NewPing(madrid, 0, time.Now())

	km, ok := geo.DistanceKm(a, b)

	require.True(t, ok)
	assert.Greater(t, km, 80.0)
}

func TestSecondsBetween(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	a := domain.NewPing(london, 0, start)
	b := domain.NewPing(london, 0, start.Add(1500*time.Millisecond))

	secs, ok := geo.SecondsBetween(a, b)
	require.True(t, ok)
	assert.Equal(t, 1.5, secs)

	// Out of order samples are passed through unclamped.
	secs, ok = geo.SecondsBetween(b, a)
	require.True(t, ok)
	assert.Equal(t, -1.5, secs)

	_, ok = geo.SecondsBetween(nil, a)
	assert.False(t, ok)
}
