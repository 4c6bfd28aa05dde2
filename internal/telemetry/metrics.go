// Package telemetry holds the Prometheus metrics for trip tracking and the
// OpenTelemetry trace exporter setup.
//
// All recorder methods are safe to call on a nil *Metrics, so components can
// be constructed without metrics in tests.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters exported at /metrics.
//
//   - travelog_pings_total{result} - location pings applied or dropped, by reason
//   - travelog_region_events_total{kind,result} - geofence enter/leave events
//   - travelog_classifications_total{outcome} - classification outcomes
//   - travelog_venue_lookups_total{result} - venue lookups (hit, miss, error)
//   - travelog_parse_retries_total - restarts of the deferred parse pass
//   - travelog_photos_total{result} - photos retained, merged or skipped
type Metrics struct {
	Pings           *prometheus.CounterVec
	RegionEvents    *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	VenueLookups    *prometheus.CounterVec
	ParseRetries    prometheus.Counter
	Photos          *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Pings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travelog_pings_total",
			Help: "Location pings received, by result",
		}, []string{"result"}),
		RegionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travelog_region_events_total",
			Help: "Geofence transitions received, by kind and result",
		}, []string{"kind", "result"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travelog_classifications_total",
			Help: "Ping classification outcomes",
		}, []string{"outcome"}),
		VenueLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travelog_venue_lookups_total",
			Help: "Venue lookup round trips, by result",
		}, []string{"result"}),
		ParseRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "travelog_parse_retries_total",
			Help: "Restarts of the deferred classification pass after a failure",
		}),
		Photos: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travelog_photos_total",
			Help: "Photos processed by the correlator, by result",
		}, []string{"result"}),
	}
}

// Ping records a location ping result ("applied" or the drop reason).
func (m *Metrics) Ping(result string) {
	if m == nil {
		return
	}
	m.Pings.WithLabelValues(result).Inc()
}

// RegionEvent records a geofence event.
func (m *Metrics) RegionEvent(kind, result string) {
	if m == nil {
		return
	}
	m.RegionEvents.WithLabelValues(kind, result).Inc()
}

// Classified records a classification outcome.
func (m *Metrics) Classified(outcome string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(outcome).Inc()
}

// VenueLookup records a venue lookup round trip ("hit", "miss", "error").
func (m *Metrics) VenueLookup(result string) {
	if m == nil {
		return
	}
	m.VenueLookups.WithLabelValues(result).Inc()
}

// ParseRetry records a restart of the parse pass.
func (m *Metrics) ParseRetry() {
	if m == nil {
		return
	}
	m.ParseRetries.Inc()
}

// Photo records a correlator decision for one photo.
func (m *Metrics) Photo(result string) {
	if m == nil {
		return
	}
	m.Photos.WithLabelValues(result).Inc()
}
