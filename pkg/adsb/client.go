package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightboard/pkg/coordinates"
)

const (
	// DefaultBaseURL is the adsb.lol v2 API base URL
	DefaultBaseURL = "https://api.adsb.lol/v2"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// maxRadiusNM is the largest radius the point endpoint accepts
	maxRadiusNM = 250.0
)

// ErrUnexpectedStatus is returned for any non-2xx response other than 429.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ClientConfig contains configuration for the position client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: https://api.adsb.lol/v2)
	BaseURL string

	// Timeout bounds every request (default: 10s)
	Timeout time.Duration

	// RequestsPerSecond limits the call rate; 0 disables limiting
	RequestsPerSecond float64
}

// Client implements the DataSource interface for readsb-compatible aggregators.
// API Documentation: https://api.adsb.lol/docs
type Client struct {
	// baseURL is the API base URL
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// limiter spaces out consecutive API calls
	limiter *rate.Limiter
}

// NewClient creates a new position API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// GetAircraft returns all aircraft within a radius of a given point.
// Uses the /point/[lat]/[lon]/[radius] endpoint, whose radius is in nautical
// miles, so radiusKm is converted and capped at 250 NM. The result is
// truncated to MaxAircraft entries.
func (c *Client) GetAircraft(ctx context.Context, centerLat, centerLon, radiusKm float64) ([]Aircraft, error) {
	radiusNM := coordinates.KmToNauticalMiles(radiusKm)
	if radiusNM > maxRadiusNM {
		radiusNM = maxRadiusNM
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, centerLat, centerLon, radiusNM)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limit (HTTP 429)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	var apiResp pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	aircraft := make([]Aircraft, 0, min(len(apiResp.Aircraft), MaxAircraft))
	for _, raw := range apiResp.Aircraft {
		if len(aircraft) == MaxAircraft {
			break
		}
		ac, ok := decodeAircraft(raw)
		if !ok {
			continue
		}
		aircraft = append(aircraft, ac)
	}
	return aircraft, nil
}

// decodeAircraft decodes one record. Fields whose value has the wrong JSON
// type are dropped so they read as absent; the rest of the record is kept.
// ok is false only when the record is not a JSON object.
func decodeAircraft(raw json.RawMessage) (Aircraft, bool) {
	var ac Aircraft
	if err := json.Unmarshal(raw, &ac); err == nil {
		return ac, true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Aircraft{}, false
	}
	for name, value := range fields {
		var check Aircraft
		single, err := json.Marshal(map[string]json.RawMessage{name: value})
		if err != nil || json.Unmarshal(single, &check) != nil {
			delete(fields, name)
		}
	}

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return Aircraft{}, false
	}
	ac = Aircraft{}
	if err := json.Unmarshal(cleaned, &ac); err != nil {
		return Aircraft{}, false
	}
	return ac, true
}

// pointResponse represents the JSON response of the point endpoint.
// Records are decoded one at a time by decodeAircraft.
type pointResponse struct {
	// Aircraft is the array of raw aircraft records
	Aircraft []json.RawMessage `json:"ac"`

	// Message is the server status message ("No error")
	Message string `json:"msg"`

	// Total number of aircraft
	Total int `json:"total"`

	// Current timestamp in milliseconds
	Now float64 `json:"now"`
}

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit: Maximum requests allowed
	Remaining int       // X-Rate-Limit-Remaining: Requests remaining in current window
	Reset     time.Time // X-Rate-Limit-Reset: When the rate limit resets
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both delay-seconds (integer) and HTTP-date formats.
//
// Examples:
//
//	Retry-After: 30                            -> 30 seconds
//	Retry-After: Wed, 21 Oct 2015 07:28:00 GMT -> duration until that time
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}

	return 0
}

// extractRateLimitHeaders extracts common rate limit headers from the response.
// Both the X-Rate-Limit-* and X-RateLimit-* spellings are accepted.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{
		Limit:     -1,
		Remaining: -1,
	}

	if val, ok := intHeader(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = val
	}
	if val, ok := intHeader(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = val
	}
	// Unix timestamp
	if val, ok := intHeader(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(int64(val), 0)
	}

	return rlh
}

func intHeader(headers http.Header, names ...string) (int, bool) {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			return n, err == nil
		}
	}
	return 0, false
}
