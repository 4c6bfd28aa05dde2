package venue

import (
	"context"

	"github.com/pkordes/travelog/internal/domain"
)

// Disabled is the finder used when no API key is configured. Every lookup
// finds nothing, so dwells are parsed without a venue.
type Disabled struct{}

// FindVenue always reports no venue.
func (Disabled) FindVenue(context.Context, domain.Coordinates, float64) (*domain.Venue, error) {
	return nil, nil
}
