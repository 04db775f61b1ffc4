// Package config loads service settings from ISSTRACK_* environment
// variables and an optional config file named by ISSTRACK_CONFIG.
//
// Malformed values are logged and replaced by their defaults; only settings
// that would leave the service insecure or unusable fail the load.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/isstrack/internal/auth"
	"github.com/star/isstrack/internal/geocode"
	"github.com/star/isstrack/internal/oem"
	"github.com/star/isstrack/internal/stream"
	"github.com/star/isstrack/internal/tracing"
)

const envPrefix = "ISSTRACK"

// Config is the full service configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   slog.Level
	TrustProxy bool

	Feed    FeedConfig
	Geocode GeocodeConfig
	Auth    auth.Config
	Stream  stream.Config
	Tracing tracing.Config
}

// FeedConfig controls the upstream OEM fetch and its disk cache.
type FeedConfig struct {
	URL           string
	Timeout       time.Duration
	MaxBytes      int64
	CacheDir      string
	CacheMaxFiles int
}

// GeocodeConfig controls reverse geocoding.
type GeocodeConfig struct {
	Enabled bool
	geocode.Config
}

var defaults = map[string]string{
	"http_addr":                 ":8080",
	"http_trust_proxy":          "false",
	"log_level":                 "info",
	"feed_url":                  oem.DefaultSourceURL,
	"feed_timeout":              "30s",
	"feed_max_bytes":            strconv.Itoa(50 << 20),
	"feed_cache_dir":            "/tmp/isstrack/oem",
	"feed_cache_max_files":      "5",
	"geocode_enabled":           "true",
	"geocode_url":               geocode.DefaultBaseURL,
	"geocode_user_agent":        geocode.DefaultUserAgent,
	"geocode_timeout":           "5s",
	"geocode_max_in_flight":     "4",
	"geocode_min_interval":      "1s",
	"auth_enabled":              "false",
	"auth_token":                "",
	"stream_max_concurrent":     "10",
	"stream_keepalive_interval": "30s",
	"tracing_enabled":           "false",
	"tracing_exporter":          "stdout",
	"tracing_endpoint":          "localhost:4317",
	"tracing_sample_ratio":      "1.0",
}

// Load reads the configuration from the environment and, when
// ISSTRACK_CONFIG is set, from that file. Environment variables win.
func Load(logger *slog.Logger) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		logger.Info("config file loaded", "component", "config", "path", v.ConfigFileUsed())
	}

	r := reader{v: v, logger: logger}
	cfg := Config{
		HTTPAddr:   r.str("http_addr"),
		LogLevel:   r.level("log_level"),
		TrustProxy: r.boolean("http_trust_proxy"),
		Feed: FeedConfig{
			URL:           r.str("feed_url"),
			Timeout:       r.duration("feed_timeout"),
			MaxBytes:      int64(r.positiveInt("feed_max_bytes")),
			CacheDir:      r.str("feed_cache_dir"),
			CacheMaxFiles: r.positiveInt("feed_cache_max_files"),
		},
		Geocode: GeocodeConfig{
			Enabled: r.boolean("geocode_enabled"),
			Config: geocode.Config{
				BaseURL:     r.str("geocode_url"),
				UserAgent:   r.str("geocode_user_agent"),
				Timeout:     r.duration("geocode_timeout"),
				MaxInFlight: r.positiveInt("geocode_max_in_flight"),
				MinInterval: r.duration("geocode_min_interval"),
			},
		},
		Stream: stream.Config{
			MaxConcurrentPerIP: r.positiveInt("stream_max_concurrent"),
			KeepaliveInterval:  r.duration("stream_keepalive_interval"),
		},
		Tracing: tracing.Config{
			Enabled:     r.boolean("tracing_enabled"),
			ServiceName: "isstrack",
			Exporter:    r.oneOf("tracing_exporter", "stdout", "otlp"),
			Endpoint:    r.str("tracing_endpoint"),
			SampleRatio: r.ratio("tracing_sample_ratio"),
		},
	}
	cfg.Stream.TrustProxy = cfg.TrustProxy

	authCfg, err := loadAuth(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = authCfg

	logger.Info("config loaded",
		"component", "config",
		"http_addr", cfg.HTTPAddr,
		"log_level", cfg.LogLevel.String(),
		"feed_url", cfg.Feed.URL,
		"feed_timeout_seconds", cfg.Feed.Timeout.Seconds(),
		"feed_cache_dir", cfg.Feed.CacheDir,
		"geocode_enabled", cfg.Geocode.Enabled,
		"auth_enabled", cfg.Auth.Enabled,
		"tracing_enabled", cfg.Tracing.Enabled,
	)
	return cfg, nil
}

func loadAuth(v *viper.Viper) (auth.Config, error) {
	cfg := auth.Config{}
	enabled, err := strconv.ParseBool(v.GetString("auth_enabled"))
	if err != nil {
		return cfg, errors.New("ISSTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
	}
	cfg.Enabled = enabled
	if cfg.Enabled {
		cfg.Token = v.GetString("auth_token")
		if cfg.Token == "" {
			return cfg, errors.New("ISSTRACK_AUTH_TOKEN is required when auth is enabled")
		}
	}
	return cfg, nil
}

// reader converts raw settings, falling back to the default on bad input.
type reader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (r reader) fallback(key string, value any) string {
	def := defaults[key]
	r.logger.Warn("invalid config value, using default",
		"component", "config",
		"key", strings.ToUpper(envPrefix+"_"+key),
		"value", value,
		"default", def,
	)
	return def
}

func (r reader) str(key string) string {
	if s := strings.TrimSpace(r.v.GetString(key)); s != "" {
		return s
	}
	return defaults[key]
}

func (r reader) boolean(key string) bool {
	s := r.v.GetString(key)
	b, err := strconv.ParseBool(s)
	if err != nil {
		b, _ = strconv.ParseBool(r.fallback(key, s))
	}
	return b
}

func (r reader) positiveInt(key string) int {
	s := r.v.GetString(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		n, _ = strconv.Atoi(r.fallback(key, s))
	}
	return n
}

// duration accepts Go duration syntax ("45s") or a bare number of seconds.
func (r reader) duration(key string) time.Duration {
	s := r.v.GetString(key)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	d, _ := time.ParseDuration(r.fallback(key, s))
	return d
}

func (r reader) ratio(key string) float64 {
	s := r.v.GetString(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		f, _ = strconv.ParseFloat(r.fallback(key, s), 64)
	}
	return f
}

func (r reader) oneOf(key string, allowed ...string) string {
	s := strings.ToLower(strings.TrimSpace(r.v.GetString(key)))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return r.fallback(key, s)
}

func (r reader) level(key string) slog.Level {
	s := r.v.GetString(key)
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		_ = l.UnmarshalText([]byte(r.fallback(key, s)))
	}
	return l
}
