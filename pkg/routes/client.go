// Package routes resolves airline and origin/destination airport names for a
// flight callsign using the adsbdb.com route database.
//
// API Documentation: https://www.adsbdb.com/
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the adsbdb v0 API base URL
	DefaultBaseURL = "https://api.adsbdb.com/v0"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// Unknown is the placeholder for any field that could not be resolved.
	Unknown = "N/A"
)

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Route is the airline and airport names for one callsign.
type Route struct {
	Airline     string
	Origin      string
	Destination string
}

// UnknownRoute is the all-unknown sentinel route.
var UnknownRoute = Route{Airline: Unknown, Origin: Unknown, Destination: Unknown}

// Resolved reports whether the airline name is known. Aircraft whose route
// does not resolve to an airline are not shown.
func (r Route) Resolved() bool {
	return r.Airline != Unknown
}

// Config contains configuration for the route lookup client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64 // 0 disables limiting
	Timeout           time.Duration
}

// Client represents an adsbdb callsign lookup client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
}

// NewClient creates a new route lookup client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, burst),
		baseURL:     cfg.BaseURL,
	}
}

// LookupCallsign retrieves the route for a callsign (e.g., "UAL123").
//
// Each field of the result is extracted independently: a missing or
// malformed airline, origin or destination only makes that field Unknown.
// Errors are returned for transport failures, non-2xx statuses and bodies
// that are not JSON at all.
func (c *Client) LookupCallsign(ctx context.Context, callsign string) (Route, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return UnknownRoute, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/callsign/%s", c.baseURL, url.PathEscape(callsign))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return UnknownRoute, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UnknownRoute, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UnknownRoute, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UnknownRoute, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 256))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return UnknownRoute, fmt.Errorf("parse response: %w", err)
	}

	return routeFromPayload(payload), nil
}

// routeFromPayload extracts response.flightroute.{airline,origin,destination}.name.
func routeFromPayload(payload map[string]interface{}) Route {
	return Route{
		Airline:     stringAt(payload, "response", "flightroute", "airline", "name"),
		Origin:      stringAt(payload, "response", "flightroute", "origin", "name"),
		Destination: stringAt(payload, "response", "flightroute", "destination", "name"),
	}
}

// stringAt walks nested JSON objects and returns the non-empty string at
// path, or Unknown if any step is missing or of the wrong type.
func stringAt(obj map[string]interface{}, path ...string) string {
	var cur interface{} = obj
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return Unknown
		}
		if cur, ok = m[key]; !ok {
			return Unknown
		}
	}
	if s, ok := cur.(string); ok && s != "" {
		return s
	}
	return Unknown
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
