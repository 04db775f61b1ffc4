// Package geocode resolves latitude/longitude pairs to place names using the
// Nominatim reverse geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/isstrack/internal/metrics"
	"github.com/star/isstrack/internal/tracing"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "iss_tracker"

	// DefaultMinInterval follows the public Nominatim limit of one request
	// per second.
	DefaultMinInterval = time.Second
)

var (
	// ErrNoResult means the coordinates resolve to no named place, which for
	// the ISS ground track almost always means open ocean.
	ErrNoResult = errors.New("no place found at coordinates")

	// ErrSaturated is returned without a network call when MaxInFlight
	// lookups are already running or the previous lookup started less than
	// MinInterval ago.
	ErrSaturated = errors.New("too many geocode lookups in flight")

	// ErrDisabled is returned by Disabled.
	ErrDisabled = errors.New("geocoding disabled")
)

// Config holds reverse geocoder settings.
type Config struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration // per lookup
	MaxInFlight int
	MinInterval time.Duration // between lookup starts
}

// Client is a Nominatim reverse geocoder.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *inflightLimiter
	gate       *intervalGate
	logger     *slog.Logger
}

// NewClient creates a Client, filling unset config values with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		limiter:    newInflightLimiter(cfg.MaxInFlight),
		gate:       newIntervalGate(cfg.MinInterval),
		logger:     logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse returns the display name of the place at lat/lon. The lookup is
// bounded by the configured timeout; a deadline surfaces as an error
// wrapping context.DeadlineExceeded.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (name string, err error) {
	if !c.gate.allow() {
		metrics.RecordGeocode("throttled", 0)
		return "", ErrSaturated
	}
	if !c.limiter.acquire() {
		metrics.RecordGeocode("saturated", 0)
		return "", ErrSaturated
	}
	defer c.limiter.release()

	ctx, span := tracing.Start(ctx, "geocode.reverse",
		attribute.Float64("geo.latitude", lat),
		attribute.Float64("geo.longitude", lon),
	)
	start := time.Now()
	defer func() {
		metrics.RecordGeocode(geocodeResult(err), time.Since(start))
		if errors.Is(err, ErrNoResult) {
			tracing.End(span, nil)
			return
		}
		tracing.End(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "15")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: unexpected status code %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding reverse geocode response: %w", err)
	}
	if body.Error != "" || body.DisplayName == "" {
		return "", ErrNoResult
	}

	c.logger.Debug("reverse geocode",
		"component", "geocode",
		"lat", lat,
		"lon", lon,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body.DisplayName, nil
}

func geocodeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoResult):
		return "no_result"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Disabled is a geocoder that never performs lookups.
type Disabled struct{}

// Reverse always returns ErrDisabled.
func (Disabled) Reverse(context.Context, float64, float64) (string, error) {
	return "", ErrDisabled
}
