// Package geocode resolves coordinates to places, and places back to
// coordinates, against a Nominatim-compatible HTTP API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pkordes/travelog/internal/domain"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "travelog/1.0"
	defaultTimeout   = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	UserAgent string

	// RatePerSecond caps outgoing requests. Public Nominatim allows one per
	// second. Zero or less disables the cap.
	RatePerSecond float64

	Timeout time.Duration
}

// Client is a rate-limited Nominatim client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// New constructs a Client, filling unset config fields with defaults.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.Named("geocode"),
	}
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Country      string `json:"country"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
	} `json:"address"`
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// ReverseGeocode resolves c to a country and city. City falls back to town,
// village and municipality in that order. A position the service cannot
// place (open sea) yields an empty Place and no error.
func (c *Client) ReverseGeocode(ctx context.Context, at domain.Coordinates) (domain.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(at.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(at.Longitude, 'f', 6, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	var resp reverseResponse
	if err := c.get(ctx, "/reverse", q, &resp); err != nil {
		return domain.Place{}, fmt.Errorf("geocode.Client.ReverseGeocode: %w", err)
	}
	if resp.Error != "" {
		c.log.Debug("position not geocodable",
			zap.Float64("latitude", at.Latitude),
			zap.Float64("longitude", at.Longitude),
			zap.String("detail", resp.Error),
		)
		return domain.Place{}, nil
	}

	a := resp.Address
	city := a.City
	for _, alt := range []string{a.Town, a.Village, a.Municipality} {
		if city != "" {
			break
		}
		city = alt
	}
	return domain.Place{Country: a.Country, City: city}, nil
}

// ForwardGeocode returns the coordinates of a city, or of the country when
// city is empty. Returns domain.ErrNotFound when nothing matches.
func (c *Client) ForwardGeocode(ctx context.Context, country, city string) (domain.Coordinates, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("country", country)
	if city != "" {
		q.Set("city", city)
	}

	var results []searchResult
	if err := c.get(ctx, "/search", q, &results); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode.Client.ForwardGeocode: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("geocode.Client.ForwardGeocode: %q, %q: %w", city, country, domain.ErrNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode.Client.ForwardGeocode: parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode.Client.ForwardGeocode: parse lon: %w", err)
	}
	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// get performs one rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
