package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/isstrack/internal/api"
	"github.com/star/isstrack/internal/config"
	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/geocode"
	"github.com/star/isstrack/internal/oem"
	"github.com/star/isstrack/internal/stream"
	"github.com/star/isstrack/internal/tracing"
)

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}

	var geocoder ephemeris.Geocoder = geocode.Disabled{}
	if cfg.Geocode.Enabled {
		geocoder = geocode.NewClient(cfg.Geocode.Config, logger)
	}

	fetcher := oem.NewFetcher(cfg.Feed.URL, cfg.Feed.Timeout, cfg.Feed.MaxBytes, logger)
	svc := ephemeris.NewService(oem.NewStore(), fetcher, geocoder, ephemeris.Options{
		Source:       fetcher.SourceURL(),
		FetchTimeout: cfg.Feed.Timeout,
		Cache:        oem.NewCache(cfg.Feed.CacheDir, cfg.Feed.CacheMaxFiles),
	}, logger)

	// Startup load: upstream first, newest cached copy second. With neither
	// the server still starts and /readyz reports 503 until a reload works.
	if _, err := svc.Reload(ctx); err != nil {
		logger.Warn("initial feed load failed, trying cache", "error", err)
		if _, err := svc.LoadCached(); err != nil {
			logger.Warn("no usable feed cache, starting without data", "error", err)
		}
	}

	streamHandler := stream.NewHandler(svc, cfg.Stream, logger)
	srv := api.NewServer(api.Config{
		Addr:       cfg.HTTPAddr,
		TrustProxy: cfg.TrustProxy,
		Auth:       cfg.Auth,
	}, svc, streamHandler, logger)

	// Background goroutine to update the dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				svc.RefreshAgeMetric()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"geocode_enabled", cfg.Geocode.Enabled,
			"dataset_loaded", svc.Loaded(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	tracing.Shutdown(shutdownCtx, shutdownTracing, logger)

	logger.Info("server stopped")
}
