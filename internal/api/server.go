package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isstrack/internal/auth"
	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/health"
	"github.com/star/isstrack/internal/httputil"
	"github.com/star/isstrack/internal/metrics"
	"github.com/star/isstrack/internal/stream"
)

// Config holds HTTP server settings.
type Config struct {
	Addr       string
	TrustProxy bool
	Auth       auth.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, svc *ephemeris.Service, streamHandler *stream.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(svc))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /{$}", allHandler(svc))
	mux.HandleFunc("GET /epochs", epochsHandler(svc))
	mux.HandleFunc("GET /epochs/{epoch}", epochHandler(svc))
	mux.HandleFunc("GET /epochs/{epoch}/speed", speedHandler(svc))
	mux.HandleFunc("GET /epochs/{epoch}/location", locationHandler(svc))
	mux.HandleFunc("GET /now", nowHandler(svc))
	mux.HandleFunc("GET /now/stream", streamHandler.HandleNow)
	mux.HandleFunc("GET /comment", commentHandler(svc))
	mux.HandleFunc("GET /header", headerHandler(svc))
	mux.HandleFunc("GET /metadata", metadataHandler(svc))
	mux.HandleFunc("GET /help", helpHandler(svc))
	mux.HandleFunc("DELETE /delete-data", deleteHandler(svc))
	mux.HandleFunc("POST /post-data", reloadHandler(svc, logger))

	// Middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Covers a full reload; streams clear their own deadline.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for probe and scrape paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
