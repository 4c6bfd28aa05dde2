package handler

import (
	"errors"
	"net/http"

	"github.com/pkordes/travelog/internal/domain"
)

// ListTrips handles GET /users/{userID}/trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		requestError(w, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	params := domain.NewPaginationParams(page, limit)
	trips, total, err := s.svc.Trips.ListByUser(r.Context(), user, params)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t, s.svc.Trips.IsValid(t))
	}
	writeJSON(w, http.StatusOK, TripList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetTrip handles GET /users/{userID}/trips/{tripID}.
// Another user's trip answers 404.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "tripID")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	trip, err := s.svc.Trips.GetByID(r.Context(), user, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "trip not found")
			return
		}
		s.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tripToResponse(trip, s.svc.Trips.IsValid(trip)))
}

// DeleteTrip handles DELETE /users/{userID}/trips/{tripID}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "tripID")
	if err != nil {
		requestError(w, err.Error())
		return
	}

	if err := s.svc.Trips.Delete(r.Context(), user, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "trip not found")
			return
		}
		s.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
