package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pkordes/travelog/internal/domain"
	"github.com/pkordes/travelog/internal/handler"
	"github.com/pkordes/travelog/internal/service"
)

// mockTracker is a test double for handler.TrackerServicer.
// Set only the method fields your test needs.
type mockTracker struct {
	ping  func(ctx context.Context, userID string, sample service.LocationSample, opts ...service.EventOption) service.Outcome
	leave func(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome
	enter func(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome
}

func (m *mockTracker) OnLocationPing(ctx context.Context, userID string, sample service.LocationSample, opts ...service.EventOption) service.Outcome {
	return m.ping(ctx, userID, sample, opts...)
}
func (m *mockTracker) OnRegionLeave(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome {
	return m.leave(ctx, userID, region, opts...)
}
func (m *mockTracker) OnRegionEnter(ctx context.Context, userID string, region domain.Region, opts ...service.EventOption) service.Outcome {
	return m.enter(ctx, userID, region, opts...)
}

type mockParse struct {
	parse func(ctx context.Context, userID string) (service.ParseReport, error)
}

func (m *mockParse) ParseUnparsedTrips(ctx context.Context, userID string) (service.ParseReport, error) {
	return m.parse(ctx, userID)
}

type mockPhotos struct {
	correlate func(ctx context.Context, userID string, home service.Home, lib service.PhotoLibrary) (service.PhotoReport, error)
}

func (m *mockPhotos) CorrelatePhotos(ctx context.Context, userID string, home service.Home, lib service.PhotoLibrary) (service.PhotoReport, error) {
	return m.correlate(ctx, userID, home, lib)
}

type mockSync struct {
	push func(ctx context.Context, userID string) (service.SyncReport, error)
}

func (m *mockSync) Push(ctx context.Context, userID string) (service.SyncReport, error) {
	return m.push(ctx, userID)
}

type mockTrips struct {
	getByID func(ctx context.Context, userID string, id uuid.UUID) (*domain.Trip, error)
	list    func(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error)
	isValid func(trip *domain.Trip) bool
	delete  func(ctx context.Context, userID string, id uuid.UUID) error
}

func (m *mockTrips) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Trip, error) {
	return m.getByID(ctx, userID, id)
}
func (m *mockTrips) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]*domain.Trip, int64, error) {
	return m.list(ctx, userID, p)
}
func (m *mockTrips) IsValid(trip *domain.Trip) bool {
	if m.isValid == nil {
		return true
	}
	return m.isValid(trip)
}
func (m *mockTrips) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return m.delete(ctx, userID, id)
}

// compile-time checks: the mocks and the real services satisfy the interfaces.
var (
	_ handler.TrackerServicer = (*mockTracker)(nil)
	_ handler.ParseServicer   = (*mockParse)(nil)
	_ handler.PhotoServicer   = (*mockPhotos)(nil)
	_ handler.SyncServicer    = (*mockSync)(nil)
	_ handler.TripServicer    = (*mockTrips)(nil)

	_ handler.TrackerServicer = (*service.TrackerService)(nil)
	_ handler.ParseServicer   = (*service.ParseService)(nil)
	_ handler.PhotoServicer   = (*service.PhotoService)(nil)
	_ handler.SyncServicer    = (*service.SyncService)(nil)
	_ handler.TripServicer    = (*service.TripService)(nil)
)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given services the way the serve
// command does.
func newHTTPHandler(t *testing.T, svc handler.Services) http.Handler {
	t.Helper()
	return handler.NewServer(svc, zaptest.NewLogger(t)).Routes()
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, h http.Handler, method, target string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec).Error.Code
}
