// Package stream pushes the live ISS position to clients as Server-Sent
// Events. Clients connect via GET /now/stream?interval=N and receive the /now
// report every N seconds.
//
// The first event on every connection describes the dataset:
//
//	event: metadata
//	data: {"source":"...","fetched_at":"...","state_vectors":5400}
//
// followed by an immediate report and one per interval:
//
//	event: now
//	data: {"closest_epoch":"2024-100T12:04:00.000Z",...}
//
// When no report can be produced (for example after /delete-data) an "error"
// event is sent instead and the stream stays open. Keep-alive comments (:\n\n)
// are sent after KeepaliveInterval of silence.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/httputil"
	"github.com/star/isstrack/internal/metrics"
	"github.com/star/isstrack/internal/oem"
)

const (
	defaultInterval = 5
	minInterval     = 1
	maxInterval     = 60
	maxTotalStreams = 1000
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int
	KeepaliveInterval  time.Duration
	TrustProxy         bool
}

// Source produces the reports streamed to clients.
type Source interface {
	All() *oem.Dataset
	Now(ctx context.Context) (ephemeris.NowReport, error)
}

// Handler serves /now/stream.
type Handler struct {
	source  Source
	config  Config
	limiter *connLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, maxTotalStreams),
		logger:  logger,
	}
}

type metadataEvent struct {
	Source       string `json:"source"`
	FetchedAt    string `json:"fetched_at,omitempty"`
	StateVectors int    `json:"state_vectors"`
}

type errorEvent struct {
	Error string `json:"error"`
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return defaultInterval * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minInterval || n > maxInterval {
		return 0, fmt.Errorf("invalid interval parameter, must be %d-%d", minInterval, maxInterval)
	}
	return time.Duration(n) * time.Second, nil
}

// HandleNow serves the SSE stream of /now reports.
func (h *Handler) HandleNow(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r.URL.Query().Get("interval"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamsActive()
	start := time.Now()
	ew := &eventWriter{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  h.logger,
	}
	h.logger.Info("stream connected",
		"component", "stream",
		"remote_ip", ip,
		"interval_seconds", interval.Seconds(),
	)
	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"remote_ip", ip,
			"events_sent", ew.sent,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Long-lived: drop the server-wide write timeout for this response.
	if err := ew.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	// Jittered reconnect delay so clients do not reconnect in lockstep.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.IntN(4000))
	flusher.Flush()

	ds := h.source.All()
	meta := metadataEvent{Source: ds.Source, StateVectors: len(ds.StateVectors)}
	if !ds.FetchedAt.IsZero() {
		meta.FetchedAt = ds.FetchedAt.UTC().Format(time.RFC3339)
	}
	if err := ew.event("metadata", meta); err != nil {
		h.sendFailed(ip, err)
		return
	}

	ctx := r.Context()
	if err := h.sendNow(ctx, ew); err != nil {
		h.sendFailed(ip, err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := h.sendNow(ctx, ew); err != nil {
				h.sendFailed(ip, err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := ew.keepalive(); err != nil {
				h.sendFailed(ip, err)
				return
			}
		}
	}
}

// sendNow writes one report, or an error event if none is available. Only
// write failures are returned.
func (h *Handler) sendNow(ctx context.Context, ew *eventWriter) error {
	rep, err := h.source.Now(ctx)
	if err != nil {
		reason := "no_report"
		if errors.Is(err, ephemeris.ErrEmptyDataset) {
			reason = "empty_dataset"
		}
		metrics.IncStreamErrors(reason)
		return ew.event("error", errorEvent{Error: err.Error()})
	}
	return ew.event("now", rep)
}

func (h *Handler) sendFailed(ip string, err error) {
	metrics.IncStreamErrors("send_error")
	h.logger.Warn("stream send failed", "component", "stream", "remote_ip", ip, "error", err)
}
