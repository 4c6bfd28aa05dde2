// Package geo holds the distance and time arithmetic shared by the
// classification engine and the photo correlator.
package geo

import (
	"math"

	"github.com/pkordes/travelog/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(a, b domain.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DistanceKm returns the distance between two pings. ok is false when either
// ping is nil.
func DistanceKm(a, b *domain.Ping) (km float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return HaversineKm(a.Coordinates(), b.Coordinates()), true
}

// SecondsBetween returns b's timestamp minus a's in seconds. ok is false when
// either ping is nil. Negative results (out-of-order samples) are returned
// as-is; callers decide how to treat them.
func SecondsBetween(a, b *domain.Ping) (secs float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return float64(b.Timestamp.UnixMilli()-a.Timestamp.UnixMilli()) / 1000, true
}
