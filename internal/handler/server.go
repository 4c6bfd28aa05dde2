// Package handler implements the HTTP host surface of travelog.
// All handlers are methods on Server. Methods are split into files by
// concern (health.go, events.go, trip.go, jobs.go) but share the Server
// struct so they can reach its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/service"
)

// TrackerServicer receives the lifecycle events from the location provider.
// Defining the interfaces here, in the consumer package, lets handler tests
// inject mocks without touching the database or service layer.
type TrackerServicer interface {
	OnLocationPing(ctx context.Context, userID string, sample service.LocationSample, opts ...service.EventOption) service.Outcome
	OnRegionLeave(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome
	OnRegionEnter(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome
}

// ParseServicer runs the deferred classification pass for one user.
type ParseServicer interface {
	ParseUnparsedTrips(ctx context.Context, userID string) (service.ParseReport, error)
}

// PhotoServicer rebuilds trips from a photo library.
type PhotoServicer interface {
	CorrelatePhotos(ctx context.Context, userID string, home service.Home, lib service.PhotoLibrary) (service.PhotoReport, error)
}

// SyncServicer uploads a user's finished trips.
type SyncServicer interface {
	Push(ctx context.Context, userID string) (service.SyncReport, error)
}

// TripServicer reads and deletes stored trips.
type TripServicer interface {
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Trip, error)
	ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error)
	IsValid(trip *domain.Trip) bool
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// Services groups the Server's dependencies. A nil service leaves its routes
// unregistered.
type Services struct {
	Tracker TrackerServicer
	Parse   ParseServicer
	Photos  PhotoServicer
	Sync    SyncServicer
	Trips   TripServicer
}

// Server serves the travelog API.
type Server struct {
	svc Services
	log *zap.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(svc Services, log *zap.Logger) *Server {
	return &Server{svc: svc, log: log.Named("http")}
}

// Routes returns a router with every API endpoint registered. The caller
// mounts it behind the request middleware.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)

	r.Route("/users/{userID}", func(r chi.Router) {
		if s.svc.Tracker != nil {
			r.Post("/pings", s.PostPing)
			r.Post("/regions/leave", s.PostRegionLeave)
			r.Post("/regions/enter", s.PostRegionEnter)
		}
		if s.svc.Parse != nil {
			r.Post("/parse", s.PostParse)
		}
		if s.svc.Photos != nil {
			r.Post("/photos/import", s.PostPhotoImport)
		}
		if s.svc.Sync != nil {
			r.Post("/sync", s.PostSync)
		}
		if s.svc.Trips != nil {
			r.Get("/trips", s.ListTrips)
			r.Get("/trips/{tripID}", s.GetTrip)
			r.Delete("/trips/{tripID}", s.DeleteTrip)
		}
	})
	return r
}

// userID binds the {userID} path parameter, answering 422 when it is
// missing. ok is false when a response has been written.
func userID(w http.ResponseWriter, r *http.Request) (id string, ok bool) {
	id, err := pathString(r, "userID")
	if err != nil {
		requestError(w, err.Error())
		return "", false
	}
	return id, true
}
