package domain

import (
	"fmt"
	"math"
)

// Coordinates is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Validate rejects non-finite or out-of-range coordinates.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrValidation)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrValidation, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrValidation, c.Longitude)
	}
	return nil
}

// Place is the result of a reverse geocode. City is empty when the lookup
// resolved a country but no settlement (open sea, airspace, wilderness).
type Place struct {
	Country string
	City    string
}

// HasCity reports whether the place resolved down to a named city.
func (p *Place) HasCity() bool {
	return p != nil && p.City != ""
}

// Region is a circular geofence, typically the user's home.
type Region struct {
	ID      string
	Center  Coordinates
	RadiusM float64

	// Place is the region's known locality, copied onto the synthetic pings
	// created at its center. Optional.
	Place *Place
}

// Validate checks the center and radius of the region.
func (r Region) Validate() error {
	if err := r.Center.Validate(); err != nil {
		return err
	}
	if !(r.RadiusM > 0) {
		return fmt.Errorf("%w: region radius must be positive", ErrValidation)
	}
	return nil
}
