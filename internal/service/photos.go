package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/classify"
	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/geo"
	"github.com/pkordes/travelog/internal/repo"
	"github.com/pkordes/travelog/internal/telemetry"
)

// Geocoder resolves places in both directions.
type Geocoder interface {
	classify.Geocoder
	ForwardGeocode(ctx context.Context, country, city string) (domain.Coordinates, error)
}

// PhotoLibrary enumerates a user's photos oldest first, one page at a time.
// An empty page ends the enumeration.
type PhotoLibrary interface {
	Page(ctx context.Context, offset, limit int) ([]domain.Asset, error)
}

// Home is the user's home place. Coordinates are forward geocoded from the
// place when nil.
type Home struct {
	Place       domain.Place
	Coordinates *domain.Coordinates
}

// PhotoConfig holds the correlator thresholds.
type PhotoConfig struct {
	HomeRadiusKm float64
	ProximityKm  float64
	PageSize     int
}

// DefaultPhotoConfig returns the production thresholds.
func DefaultPhotoConfig() PhotoConfig {
	return PhotoConfig{HomeRadiusKm: 40, ProximityKm: 0.2, PageSize: 100}
}

// PhotoReport summarises one CorrelatePhotos call.
type PhotoReport struct {
	Photos   int      `json:"photos"`
	Retained int      `json:"retained"`
	Merged   int      `json:"merged"`
	Skipped  int      `json:"skipped"`
	Known    int      `json:"known"`
	AtHome   int      `json:"at_home"`
	TripIDs  []string `json:"trip_ids"`
}

// PhotoService rebuilds trips from a geotagged photo library.
type PhotoService struct {
	trips    repo.TripRepo
	geocoder Geocoder
	engine   *classify.Engine
	locks    *UserLocks
	cfg      PhotoConfig
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

// NewPhotoService constructs a PhotoService. metrics may be nil.
func NewPhotoService(trips repo.TripRepo, geocoder Geocoder, engine *classify.Engine, locks *UserLocks, cfg PhotoConfig, metrics *telemetry.Metrics, log *zap.Logger) *PhotoService {
	return &PhotoService{
		trips:    trips,
		geocoder: geocoder,
		engine:   engine,
		locks:    locks,
		cfg:      cfg,
		metrics:  metrics,
		log:      log.Named("photos"),
	}
}

// correlation is the state carried across photos.
type correlation struct {
	userID      string
	home        domain.Coordinates
	current     *domain.Trip
	prevCountry string
	closed      []*domain.Trip

	// prev is the previous located photo away from home, retained or not.
	// In-transit distance is measured from it, so one long hop skips one
	// photo only.
	prev *domain.Ping
}

func (c *correlation) close() {
	if c.current == nil {
		return
	}
	if last := c.current.Last(); last != nil {
		c.current.Finish(last.Timestamp)
	} else {
		c.current.Finish(c.current.StartedAt)
	}
	c.closed = append(c.closed, c.current)
	c.current = nil
}

// CorrelatePhotos walks the library page by page and groups photos taken
// away from home into finished synthetic trips. A trip closes when a photo is
// back within HomeRadiusKm of home or when the country changes. Photos closer
// than ProximityKm to the trip's last ping are merged into it. Every retained
// ping then gets a venue lookup and each trip is saved.
//
// A photo without GPS metadata, that cannot be geocoded, or that looks like it
// was taken in transit is skipped with a warning. Photos an earlier import
// already placed in one of the user's trips are counted as known and left
// alone. A failing page, lookup or save aborts the whole call.
func (s *PhotoService) CorrelatePhotos(ctx context.Context, userID string, home Home, lib PhotoLibrary) (PhotoReport, error) {
	ctx, span := tracer.Start(ctx, "service.CorrelatePhotos")
	defer span.End()

	report := PhotoReport{TripIDs: []string{}}

	homeCoords, err := s.resolveHome(ctx, home)
	if err != nil {
		return report, fmt.Errorf("service.PhotoService.CorrelatePhotos: %w", err)
	}
	c := &correlation{userID: userID, home: homeCoords}

	pageSize := max(s.cfg.PageSize, 1)
	for offset := 0; ; offset += pageSize {
		assets, err := lib.Page(ctx, offset, pageSize)
		if err != nil {
			return report, fmt.Errorf("service.PhotoService.CorrelatePhotos: page at %d: %w", offset, err)
		}
		if len(assets) == 0 {
			break
		}
		owned, err := s.ownedAssets(ctx, userID, assets)
		if err != nil {
			return report, fmt.Errorf("service.PhotoService.CorrelatePhotos: %w", err)
		}
		for _, asset := range assets {
			report.Photos++
			if owned[asset.ID] {
				report.Known++
				s.metrics.Photo("known")
				continue
			}
			s.correlate(ctx, c, asset, &report)
		}
		if len(assets) < pageSize {
			break
		}
	}
	c.close()

	for _, trip := range c.closed {
		if err := s.finishTrip(ctx, trip); err != nil {
			return report, fmt.Errorf("service.PhotoService.CorrelatePhotos: %w", err)
		}
		report.TripIDs = append(report.TripIDs, trip.ID.String())
	}
	return report, nil
}

// ownedAssets returns the ids on the page that an earlier import already
// attached to one of the user's trips.
func (s *PhotoService) ownedAssets(ctx context.Context, userID string, assets []domain.Asset) (map[string]bool, error) {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	owned, err := s.trips.OwnedPhotoIDs(ctx, userID, ids)
	if err != nil {
		return nil, storeErr("owned photos", err)
	}
	set := make(map[string]bool, len(owned))
	for _, id := range owned {
		set[id] = true
	}
	return set, nil
}

// correlate places one asset.
func (s *PhotoService) correlate(ctx context.Context, c *correlation, asset domain.Asset, report *PhotoReport) {
	skip := func(msg string, fields ...zap.Field) {
		report.Skipped++
		s.metrics.Photo("skipped")
		s.log.Warn(msg, append([]zap.Field{zap.String("user_id", c.userID), zap.String("asset_id", asset.ID)}, fields...)...)
	}

	if asset.Location == nil {
		skip("photo has no location")
		return
	}
	if err := asset.Location.Validate(); err != nil {
		skip("photo location invalid", zap.Error(err))
		return
	}

	// Home ends the trip whatever the hop from the last photo abroad.
	if geo.HaversineKm(c.home, *asset.Location) <= s.cfg.HomeRadiusKm {
		c.close()
		c.prev = nil
		c.prevCountry = ""
		report.AtHome++
		s.metrics.Photo("home")
		return
	}

	ping := domain.NewPing(*asset.Location, asset.Altitude, asset.CreatedAt)
	ping.Photos = []domain.Photo{asset.Photo()}

	place, err := s.geocoder.ReverseGeocode(ctx, ping.Coordinates())
	if err != nil {
		skip("photo reverse geocode failed", zap.Error(err))
		return
	}
	ping.Place = &place

	if km, ok := geo.DistanceKm(c.prev, ping); ok {
		ping.Distance = &km
	}
	c.prev = ping
	if s.engine.Config().InFlight(ping) {
		skip("photo taken in transit")
		return
	}

	if c.current != nil && c.prevCountry != "" && place.Country != c.prevCountry {
		c.close()
	}
	c.prevCountry = place.Country

	if c.current == nil {
		c.current = domain.NewTrip(c.userID, ping.Timestamp)
	}
	last := c.current.Last()

	// Classification recomputes distance against the surviving neighbour.
	ping.Distance = nil

	if last != nil && geo.HaversineKm(last.Coordinates(), ping.Coordinates()) < s.cfg.ProximityKm {
		domain.MergePing(last, ping, false)
		report.Merged++
		s.metrics.Photo("merged")
		return
	}

	c.current.Append(ping)
	report.Retained++
	s.metrics.Photo("retained")
}

// finishTrip classifies every ping of a closed synthetic trip and saves it.
// A ping whose lookup fails stays unparsed for the next parse pass.
func (s *PhotoService) finishTrip(ctx context.Context, trip *domain.Trip) error {
	unlock := s.locks.Lock(trip.UserID)
	defer unlock()

	for _, ping := range trip.Sorted() {
		if ping.Merged {
			continue
		}
		idx := trip.IndexOf(ping.ID)
		if _, err := s.engine.Classify(ctx, trip, idx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("photo ping left unparsed",
				zap.String("trip_id", trip.ID.String()),
				zap.String("ping_id", ping.ID.String()),
				zap.Error(err),
			)
		}
	}

	if err := s.trips.Save(ctx, trip); err != nil {
		return storeErr("save trip", err)
	}
	return nil
}

// resolveHome returns the home coordinates, forward geocoding when needed.
func (s *PhotoService) resolveHome(ctx context.Context, home Home) (domain.Coordinates, error) {
	if home.Coordinates != nil {
		return *home.Coordinates, home.Coordinates.Validate()
	}
	c, err := s.geocoder.ForwardGeocode(ctx, home.Place.Country, home.Place.City)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: forward geocode home: %w", domain.ErrCollaborator, err)
	}
	return c, nil
}
