package handler

import (
	"net/http"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/photolib"
)

// PostParse handles POST /users/{userID}/parse.
// The pass runs synchronously and the response carries its counts.
func (s *Server) PostParse(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	report, err := s.svc.Parse.ParseUnparsedTrips(r.Context(), user)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// PostPhotoImport handles POST /users/{userID}/photos/import.
func (s *Server) PostPhotoImport(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	var body PhotoImportRequest
	if !decodeBody(w, r, &body) {
		return
	}
	home, err := body.Home.home()
	if err != nil {
		requestError(w, err.Error())
		return
	}

	assets := make([]domain.Asset, len(body.Assets))
	for i, a := range body.Assets {
		assets[i] = a.asset()
	}
	lib, err := photolib.New(assets)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	report, err := s.svc.Photos.CorrelatePhotos(r.Context(), user, home, lib)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// PostSync handles POST /users/{userID}/sync.
func (s *Server) PostSync(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	report, err := s.svc.Sync.Push(r.Context(), user)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
