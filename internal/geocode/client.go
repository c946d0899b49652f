// Package geocode talks to the reverse-geocoding and airport metadata HTTP
// services used to describe where the aircraft is.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultGeocodeURL is the nearest-airport reverse geocoding service.
	DefaultGeocodeURL = "http://iatageo.com"
	// DefaultAirportURL is the airport metadata service.
	DefaultAirportURL = "https://www.airport-data.com"
	// DefaultTimeout for a single service call.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// HTTPError is returned when a service answers with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("geocode: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Location is the airport nearest to a coordinate.
type Location struct {
	ICAO string `json:"ICAO"`
	IATA string `json:"IATA"`
	Name string `json:"name"`
}

// Airport is the metadata record for one airport.
type Airport struct {
	ICAO        string `json:"icao"`
	IATA        string `json:"iata"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

// Config holds the service endpoints.
type Config struct {
	GeocodeURL string
	AirportURL string
	Timeout    time.Duration
}

// Client implements both lookups over one http.Client. Calls are not retried.
type Client struct {
	httpClient *http.Client
	geocodeURL string
	airportURL string
	logger     *slog.Logger
}

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeocodeURL
	}
	if cfg.AirportURL == "" {
		cfg.AirportURL = DefaultAirportURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		geocodeURL: strings.TrimRight(cfg.GeocodeURL, "/"),
		airportURL: strings.TrimRight(cfg.AirportURL, "/"),
		logger:     slog.Default().With("component", "geocode"),
	}
}

// ReverseGeocode returns the airport nearest to lat/lon.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (Location, error) {
	u := fmt.Sprintf("%s/getCode/%s/%s", c.geocodeURL, formatCoord(lat), formatCoord(lon))

	var loc Location
	if err := c.getJSON(ctx, u, &loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// LookupAirport returns the metadata of the airport with the given ICAO code.
func (c *Client) LookupAirport(ctx context.Context, icao string) (Airport, error) {
	u := fmt.Sprintf("%s/api/ap_info.json?icao=%s", c.airportURL, url.QueryEscape(icao))

	var ap Airport
	if err := c.getJSON(ctx, u, &ap); err != nil {
		return Airport{}, err
	}
	return ap, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Service call", "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// formatCoord renders a coordinate with a '.' decimal separator and the
// shortest exact representation.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
