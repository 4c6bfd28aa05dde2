package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pkordes/travelog/internal/middleware"
)

// TestZapLogger_logsRequestFields verifies that the ZapLogger middleware
// writes one structured entry containing method, path, status, duration,
// and the request ID placed in context by chi's RequestID middleware.
func TestZapLogger_logsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := chimiddleware.RequestID(middleware.NewZapLogger(zap.New(core))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	))

	req := httptest.NewRequest(http.MethodPost, "/users/u1/pings", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/users/u1/pings", fields["path"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Contains(t, fields, "duration_ms")
}

// TestZapLogger_implicitOK verifies that a handler which never calls
// WriteHeader is logged as 200.
func TestZapLogger_implicitOK(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := middleware.NewZapLogger(zap.New(core))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()["status"])
}

// TestZapLogger_serverErrorsAtErrorLevel verifies that 5xx responses are
// logged at error level.
func TestZapLogger_serverErrorsAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := middleware.NewZapLogger(zap.New(core))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trips/x", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}
