// Package config loads and validates application configuration from an
// optional YAML file and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the server and CLI.
//
// Precedence, highest first: environment variables, the YAML file, the
// defaults from Default. Environment variables map SECTION_FIELD_NAME to
// section.field_name, so TRACKER_MIN_PING_INTERVAL sets
// tracker.min_ping_interval. PORT maps to the top-level port.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `koanf:"port"`

	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	CORS     CORSConfig     `koanf:"cors"`
	HTTP     HTTPConfig     `koanf:"http"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	Photos   PhotosConfig   `koanf:"photos"`
	Geocode  GeocodeConfig  `koanf:"geocode"`
	Venue    VenueConfig    `koanf:"venue"`
	NATS     NATSConfig     `koanf:"nats"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// DatabaseConfig configures the Postgres store.
type DatabaseConfig struct {
	// URL is the Postgres connection string. Required.
	URL string `koanf:"url"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to "info".
	Level string `koanf:"level"`
	// Format is json or console. Defaults to "json".
	Format string `koanf:"format"`
}

// CORSConfig configures cross-origin requests.
type CORSConfig struct {
	// Origins defaults to ["http://localhost:5173"]. CORS_ORIGINS takes a
	// comma-separated list.
	Origins []string `koanf:"origins"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// TrackerConfig holds the trip tracking and classification thresholds.
type TrackerConfig struct {
	MinPingInterval  time.Duration `koanf:"min_ping_interval"`
	VisitedFactor    float64       `koanf:"visited_factor"`
	MinTripDuration  time.Duration `koanf:"min_trip_duration"`
	MinTripPings     int           `koanf:"min_trip_pings"`
	VenueLookupDelay time.Duration `koanf:"venue_lookup_delay"`
	RetryBackoff     time.Duration `koanf:"retry_backoff"`
	MaxRetries       uint64        `koanf:"max_retries"`

	// ParseInterval is the period of the background parse pass run by
	// serve. Zero disables it.
	ParseInterval time.Duration `koanf:"parse_interval"`
}

// PhotosConfig holds the photo correlator thresholds.
type PhotosConfig struct {
	HomeRadiusKm float64 `koanf:"home_radius_km"`
	ProximityKm  float64 `koanf:"proximity_km"`
	PageSize     int     `koanf:"page_size"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL       string  `koanf:"base_url"`
	UserAgent     string  `koanf:"user_agent"`
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// VenueConfig configures the venue lookup client. Venue lookups are
// disabled when APIKey is empty.
type VenueConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	RadiusM int    `koanf:"radius_m"`
}

// NATSConfig configures trip sync. Sync is disabled when URL is empty.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// TracingConfig configures OTLP/HTTP span export. Export is disabled when
// Endpoint is empty.
type TracingConfig struct {
	Endpoint   string  `koanf:"endpoint"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// sections are the top-level keys environment variables may set.
var sections = map[string]bool{
	"port": true, "database": true, "log": true, "cors": true, "http": true,
	"tracker": true, "photos": true, "geocode": true, "venue": true, "nats": true, "tracing": true,
}

// Default returns the configuration used for every key that is not set.
func Default() Config {
	return Config{
		Port: "8080",
		Log:  LogConfig{Level: "info", Format: "json"},
		CORS: CORSConfig{Origins: []string{"http://localhost:5173"}},
		HTTP: HTTPConfig{MaxBodyBytes: 1 << 20},
		Tracker: TrackerConfig{
			MinPingInterval:  15 * time.Minute,
			VisitedFactor:    1.5,
			MinTripDuration:  time.Hour,
			MinTripPings:     3,
			VenueLookupDelay: 1500 * time.Millisecond,
			RetryBackoff:     5 * time.Second,
			MaxRetries:       3,
			ParseInterval:    10 * time.Minute,
		},
		Photos: PhotosConfig{HomeRadiusKm: 40, ProximityKm: 0.2, PageSize: 100},
		Geocode: GeocodeConfig{
			BaseURL:       "https://nominatim.openstreetmap.org",
			UserAgent:     "travelog/1.0",
			RatePerSecond: 1,
		},
		Venue:   VenueConfig{BaseURL: "https://api.foursquare.com", RadiusM: 100},
		NATS:    NATSConfig{SubjectPrefix: "travelog.trips"},
		Tracing: TracingConfig{SampleRate: 1},
	}
}

// Load reads the YAML file at path, when path is not empty, then the
// environment, and returns the validated Config.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config.Load: environment: %w", err)
	}

	cfg := Default()
	if k.Exists("cors.origins") {
		// A configured list replaces the default rather than merging into it.
		cfg.CORS.Origins = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name and drops variables
// outside the known sections and empty values.
func envKey(name, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	lower := strings.ToLower(name)
	section, field, nested := strings.Cut(lower, "_")
	if !sections[section] {
		return "", nil
	}
	if !nested {
		return section, value
	}
	key := section + "." + field
	if key == "cors.origins" {
		return key, splitCSV(value)
	}
	return key, value
}

// Validate reports every invalid or missing value at once.
func (c Config) Validate() error {
	var problems []string
	if c.Database.URL == "" {
		problems = append(problems, "database.url (DATABASE_URL) is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		problems = append(problems, "http.max_body_bytes must be positive")
	}

	t := c.Tracker
	if t.MinPingInterval <= 0 {
		problems = append(problems, "tracker.min_ping_interval must be positive")
	}
	if t.VisitedFactor <= 0 {
		problems = append(problems, "tracker.visited_factor must be positive")
	}
	if t.MinTripPings < 0 || t.MinTripDuration < 0 {
		problems = append(problems, "tracker.min_trip_duration and tracker.min_trip_pings must not be negative")
	}
	if t.VenueLookupDelay < 0 || t.ParseInterval < 0 {
		problems = append(problems, "tracker.venue_lookup_delay and tracker.parse_interval must not be negative")
	}
	if t.RetryBackoff <= 0 {
		problems = append(problems, "tracker.retry_backoff must be positive")
	}

	p := c.Photos
	if p.HomeRadiusKm <= 0 || p.ProximityKm <= 0 || p.PageSize <= 0 {
		problems = append(problems, "photos.home_radius_km, photos.proximity_km and photos.page_size must be positive")
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		problems = append(problems, "nats.subject_prefix is required when nats.url is set")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		problems = append(problems, "tracing.sample_rate must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
