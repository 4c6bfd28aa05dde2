// Package photolib serves a posted photo manifest as a paged library.
package photolib

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkordes/travelog/internal/domain"
)

// Library is an immutable, oldest-first view over a set of assets.
type Library struct {
	assets []domain.Asset
}

// New returns a Library over a copy of assets sorted by creation time.
// Assets sharing a timestamp keep their input order. Duplicate IDs are
// rejected since a photo can only be owned by one ping.
func New(assets []domain.Asset) (*Library, error) {
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if a.ID == "" {
			return nil, fmt.Errorf("photolib.New: %w: asset without id", domain.ErrValidation)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("photolib.New: %w: duplicate asset %q", domain.ErrValidation, a.ID)
		}
		seen[a.ID] = struct{}{}
	}

	sorted := slices.Clone(assets)
	slices.SortStableFunc(sorted, func(a, b domain.Asset) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return &Library{assets: sorted}, nil
}

// Len returns the number of assets.
func (l *Library) Len() int {
	return len(l.assets)
}

// Page returns up to limit assets starting at offset. Past the end it
// returns an empty page.
func (l *Library) Page(ctx context.Context, offset, limit int) ([]domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("photolib.Library.Page: %w: offset %d limit %d", domain.ErrValidation, offset, limit)
	}
	start := min(offset, len(l.assets))
	end := min(start+limit, len(l.assets))
	return slices.Clone(l.assets[start:end]), nil
}
