package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/service"
)

// PostPing handles POST /users/{userID}/pings.
// Events are always answered with 200 and the Outcome: a dropped ping is not
// an HTTP failure.
func (s *Server) PostPing(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var body PingRequest
	if !decodeBody(w, r, &body) {
		return
	}
	sample, err := body.sample()
	if err != nil {
		requestError(w, err.Error())
		return
	}
	opts, ok := eventOptions(w, r)
	if !ok {
		return
	}

	out := s.svc.Tracker.OnLocationPing(r.Context(), user, sample, opts...)
	writeJSON(w, http.StatusOK, outcomeToResponse(out))
}

// PostRegionLeave handles POST /users/{userID}/regions/leave.
func (s *Server) PostRegionLeave(w http.ResponseWriter, r *http.Request) {
	s.regionEvent(w, r, s.svc.Tracker.OnRegionLeave)
}

// PostRegionEnter handles POST /users/{userID}/regions/enter.
func (s *Server) PostRegionEnter(w http.ResponseWriter, r *http.Request) {
	s.regionEvent(w, r, s.svc.Tracker.OnRegionEnter)
}

func (s *Server) regionEvent(
	w http.ResponseWriter,
	r *http.Request,
	handle func(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome,
) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var body RegionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	region, err := body.region()
	if err != nil {
		requestError(w, err.Error())
		return
	}
	opts, ok := eventOptions(w, r)
	if !ok {
		return
	}

	out := handle(r.Context(), user, region, opts...)
	writeJSON(w, http.StatusOK, outcomeToResponse(out))
}

// eventOptions reads the ?at= replay override.
func eventOptions(w http.ResponseWriter, r *http.Request) ([]service.EventOption, bool) {
	at, err := queryEpochMillis(r, "at")
	if err != nil {
		requestError(w, err.Error())
		return nil, false
	}
	if at == nil {
		return nil, true
	}
	return []service.EventOption{service.At(*at)}, true
}

// decodeBody decodes the JSON request body into v. Unknown fields are
// rejected. ok is false when a response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (ok bool) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{Code: "request_too_large", Message: "request body too large"}})
	case errors.Is(err, io.EOF):
		requestError(w, "request body is required")
	default:
		requestError(w, "malformed request body: "+err.Error())
	}
	return false
}
