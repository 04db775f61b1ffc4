package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	datasetStateVectors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstrack_dataset_state_vectors",
		Help: "Number of state vectors in the current dataset.",
	})

	datasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstrack_dataset_age_seconds",
		Help: "Seconds since the current dataset was fetched.",
	})

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_feed_reloads_total",
			Help: "Feed reload attempts by result.",
		},
		[]string{"result"}, // ok | fetch_error | parse_error
	)

	reloadDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isstrack_feed_reload_duration_seconds",
		Help:    "Duration of feed fetch and parse.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	geocodeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_geocode_requests_total",
			Help: "Reverse geocode lookups by result.",
		},
		[]string{"result"}, // ok | no_result | error | timeout | saturated
	)

	geocodeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isstrack_geocode_duration_seconds",
		Help:    "Reverse geocode lookup latency.",
		Buckets: prometheus.ExponentialBuckets(0.025, 2, 10),
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstrack_streams_active",
		Help: "Number of open SSE streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstrack_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		datasetStateVectors,
		datasetAgeSeconds,
		reloadsTotal,
		reloadDurationSeconds,
		geocodeRequestsTotal,
		geocodeDurationSeconds,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetDatasetSize records the number of state vectors currently served.
func SetDatasetSize(n int) { datasetStateVectors.Set(float64(n)) }

// SetDatasetAge records the age of the current dataset.
func SetDatasetAge(seconds float64) { datasetAgeSeconds.Set(seconds) }

// RecordReload counts a reload attempt and its duration.
func RecordReload(result string, d time.Duration) {
	reloadsTotal.WithLabelValues(result).Inc()
	reloadDurationSeconds.Observe(d.Seconds())
}

// RecordGeocode counts a reverse geocode lookup. Saturated and throttled
// lookups never reach the network and are not timed.
func RecordGeocode(result string, d time.Duration) {
	geocodeRequestsTotal.WithLabelValues(result).Inc()
	if result != "saturated" && result != "throttled" {
		geocodeDurationSeconds.Observe(d.Seconds())
	}
}

func IncStreamsActive()             { streamsActive.Inc() }
func DecStreamsActive()             { streamsActive.Dec() }
func IncStreamMessages()            { streamMessagesTotal.Inc() }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":            true,
	"/epochs":      true,
	"/now":         true,
	"/now/stream":  true,
	"/comment":     true,
	"/header":      true,
	"/metadata":    true,
	"/help":        true,
	"/delete-data": true,
	"/post-data":   true,
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
}

// normalizeRoute maps a request path onto a bounded label set so that
// per-epoch paths do not create one series per epoch.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/epochs/"); ok && rest != "" {
		switch {
		case strings.HasSuffix(rest, "/speed") && strings.Count(rest, "/") == 1:
			return "/epochs/{epoch}/speed"
		case strings.HasSuffix(rest, "/location") && strings.Count(rest, "/") == 1:
			return "/epochs/{epoch}/location"
		case !strings.Contains(rest, "/"):
			return "/epochs/{epoch}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streams keep working
// behind this middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
