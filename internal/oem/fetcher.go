package oem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSourceURL is NASA's public ISS trajectory feed (OEM, J2000 frame).
const DefaultSourceURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

const defaultMaxBytes = 50 << 20

// Fetcher retrieves the raw OEM document from the upstream feed.
type Fetcher struct {
	sourceURL  string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. An empty URL selects
// DefaultSourceURL; a non-positive timeout or maxBytes selects the defaults.
func NewFetcher(sourceURL string, timeout time.Duration, maxBytes int64, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		sourceURL: sourceURL,
		maxBytes:  maxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET for the feed document. All failures are
// returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, &FetchError{URL: f.sourceURL, Err: fmt.Errorf("creating request: %w", err)}
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: f.sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: f.sourceURL, Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	// Read one byte past the limit so an oversized body is detectable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: f.sourceURL, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &FetchError{URL: f.sourceURL, Err: fmt.Errorf("response exceeds %d byte limit", f.maxBytes)}
	}

	f.logger.Debug("feed fetched",
		"component", "oem",
		"url", f.sourceURL,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return body, nil
}
