// Package venue finds the named place at a position using a Foursquare
// Places v3 compatible API.
package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/domain"
)

const (
	defaultBaseURL = "https://api.foursquare.com"
	defaultRadiusM = 100
	defaultTimeout = 10 * time.Second

	searchFields = "fsq_id,name,categories,location,geocodes,tel,email,website,description,social_media,hours"
)

// ErrUnauthorized is returned when the provider rejects the API key.
var ErrUnauthorized = errors.New("venue: api key rejected")

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// RadiusM is the search radius around the position.
	RadiusM int

	Timeout time.Duration
}

// Client looks up the nearest venue. Spacing between calls is the caller's
// concern. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	radiusM    int
	httpClient *http.Client
	log        *zap.Logger
}

// New constructs a Client. An empty API key is rejected.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("venue.New: api key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = defaultRadiusM
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		radiusM:    cfg.RadiusM,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("venue"),
	}, nil
}

type searchResponse struct {
	Results []place `json:"results"`
}

type place struct {
	FsqID      string `json:"fsq_id"`
	Name       string `json:"name"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Location struct {
		Address  string `json:"address"`
		Locality string `json:"locality"`
		Region   string `json:"region"`
		Postcode string `json:"postcode"`
		Country  string `json:"country"`
	} `json:"location"`
	Geocodes struct {
		Main struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
	Tel         string `json:"tel"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Description string `json:"description"`
	SocialMedia struct {
		FacebookID string `json:"facebook_id"`
		Twitter    string `json:"twitter"`
	} `json:"social_media"`
	Hours *struct {
		Display string `json:"display"`
		OpenNow *bool  `json:"open_now"`
	} `json:"hours"`
}

// FindVenue returns the closest venue within the configured radius, or nil
// when there is none. Altitude is not used by the provider's search.
func (c *Client) FindVenue(ctx context.Context, at domain.Coordinates, _ float64) (*domain.Venue, error) {
	q := url.Values{}
	q.Set("ll", strconv.FormatFloat(at.Latitude, 'f', 6, 64)+","+strconv.FormatFloat(at.Longitude, 'f', 6, 64))
	q.Set("radius", strconv.Itoa(c.radiusM))
	q.Set("limit", "1")
	q.Set("sort", "DISTANCE")
	q.Set("fields", searchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/places/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("venue.Client.FindVenue: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("venue.Client.FindVenue: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("venue.Client.FindVenue: %w", ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("venue.Client.FindVenue: unexpected status %d: %s", resp.StatusCode, body)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("venue.Client.FindVenue: decode response: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}

	v := out.Results[0].venue()
	c.log.Debug("venue found", zap.String("venue_id", v.ID), zap.String("name", v.Name))
	return v, nil
}

func (p place) venue() *domain.Venue {
	v := &domain.Venue{ID: p.FsqID, Name: p.Name}
	if len(p.Categories) > 0 {
		v.Category = p.Categories[0].Name
	}

	if p.Tel != "" || p.Email != "" || p.SocialMedia.Twitter != "" || p.SocialMedia.FacebookID != "" {
		v.Contact = &domain.VenueContact{
			Phone:    p.Tel,
			Email:    p.Email,
			Twitter:  p.SocialMedia.Twitter,
			Facebook: p.SocialMedia.FacebookID,
		}
	}

	l := p.Location
	v.Location = &domain.VenueLocation{
		Address:   l.Address,
		Locality:  l.Locality,
		Region:    l.Region,
		Postcode:  l.Postcode,
		Country:   l.Country,
		Latitude:  p.Geocodes.Main.Latitude,
		Longitude: p.Geocodes.Main.Longitude,
	}

	if p.Website != "" {
		v.URL = &p.Website
	}
	if p.Description != "" {
		v.Description = &p.Description
	}
	if p.Hours != nil {
		v.Hours = &domain.VenueHours{Display: p.Hours.Display, OpenNow: p.Hours.OpenNow}
	}
	return v
}
