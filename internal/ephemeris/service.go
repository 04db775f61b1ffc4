// Package ephemeris answers queries against the current ISS trajectory
// dataset: epoch lookup and windows, speed, geodetic location, the sample
// nearest to now, and whole-dataset clear and reload.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"go.opentelemetry.io/otel/attribute"

	"github.com/star/isstrack/internal/geocode"
	"github.com/star/isstrack/internal/metrics"
	"github.com/star/isstrack/internal/oem"
	"github.com/star/isstrack/internal/tracing"
	"github.com/star/isstrack/internal/transform"
)

// Placeholder place names used when the geocoder cannot name a location.
const (
	PlaceOverWater   = "Over a body of water"
	PlaceUnavailable = "location unavailable"
)

// Feed retrieves the raw upstream ephemeris document.
type Feed interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Geocoder resolves coordinates to a place name. geocode.ErrNoResult means
// there is nothing to name at that point.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Options configures optional Service behaviour.
type Options struct {
	Source       string        // recorded on reloaded datasets
	FetchTimeout time.Duration // default 30s
	Cache        *oem.Cache    // nil disables the feed cache
	Now          func() time.Time
}

// Service composes the dataset store with lookup and derived computations.
type Service struct {
	store        *oem.Store
	feed         Feed
	geocoder     Geocoder
	cache        *oem.Cache
	source       string
	fetchTimeout time.Duration
	now          func() time.Time
	places       *placeCache
	logger       *slog.Logger

	// reloadMu serializes fetch and publish across writers.
	reloadMu sync.Mutex
}

// NewService creates a Service over store.
func NewService(store *oem.Store, feed Feed, geocoder Geocoder, opts Options, logger *slog.Logger) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:        store,
		feed:         feed,
		geocoder:     geocoder,
		cache:        opts.Cache,
		source:       opts.Source,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		places:       newPlaceCache(),
		logger:       logger,
	}
}

// Quantity is a value with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// SpeedReport is the speed of one sample.
type SpeedReport struct {
	Epoch string  `json:"epoch"`
	Speed float64 `json:"speed"`
	Units string  `json:"units"`
}

// LocationReport is the geodetic position of one sample.
type LocationReport struct {
	Epoch       string  `json:"epoch"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	Geoposition string  `json:"geoposition"`
}

// NowReport describes the sample nearest to the current time.
type NowReport struct {
	ClosestEpoch   string   `json:"closest_epoch"`
	SecondsFromNow float64  `json:"seconds_from_now"`
	JulianDate     float64  `json:"julian_date"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Altitude       Quantity `json:"altitude"`
	Geoposition    string   `json:"geoposition"`
	Speed          Quantity `json:"speed"`
}

// Loaded reports whether a dataset has ever been loaded.
func (s *Service) Loaded() bool { return s.store.Loaded() }

// All returns the current dataset.
func (s *Service) All() *oem.Dataset { return s.store.Snapshot() }

// EpochWindow returns the epochs selected by the raw limit and offset values.
func (s *Service) EpochWindow(limit, offset string) ([]string, error) {
	ds := s.store.Snapshot()
	w, err := ParseWindow(limit, offset, len(ds.StateVectors))
	if err != nil {
		return nil, err
	}
	return EpochWindow(ds, w), nil
}

// Epoch returns the state vector for key.
func (s *Service) Epoch(key string) (oem.StateVector, error) {
	return Find(s.store.Snapshot(), key)
}

// Speed returns the speed of the sample at key.
func (s *Service) Speed(key string) (SpeedReport, error) {
	sv, err := Find(s.store.Snapshot(), key)
	if err != nil {
		return SpeedReport{}, err
	}
	return SpeedReport{
		Epoch: sv.Epoch,
		Speed: transform.Speed(sv.Velocity),
		Units: "km/s",
	}, nil
}

// Location returns the geodetic position and place name of the sample at key.
func (s *Service) Location(ctx context.Context, key string) (LocationReport, error) {
	sv, err := Find(s.store.Snapshot(), key)
	if err != nil {
		return LocationReport{}, err
	}
	g, err := transform.FromStateVector(sv)
	if err != nil {
		return LocationReport{}, err
	}
	return LocationReport{
		Epoch:       sv.Epoch,
		Latitude:    g.Latitude,
		Longitude:   g.Longitude,
		Altitude:    g.Altitude,
		Geoposition: s.placeName(ctx, sv.Epoch, g),
	}, nil
}

// Now reports the sample nearest to the current time.
func (s *Service) Now(ctx context.Context) (NowReport, error) {
	sv, delta, err := Nearest(s.store.Snapshot(), s.now())
	if err != nil {
		return NowReport{}, err
	}
	g, err := transform.FromStateVector(sv)
	if err != nil {
		return NowReport{}, err
	}
	t, err := oem.ParseEpoch(sv.Epoch)
	if err != nil {
		return NowReport{}, err
	}

	return NowReport{
		ClosestEpoch:   sv.Epoch,
		SecondsFromNow: delta,
		JulianDate:     julian.TimeToJD(t),
		Latitude:       g.Latitude,
		Longitude:      g.Longitude,
		Altitude:       Quantity{Value: g.Altitude, Units: "km"},
		Geoposition:    s.placeName(ctx, sv.Epoch, g),
		Speed:          Quantity{Value: transform.Speed(sv.Velocity), Units: "km/s"},
	}, nil
}

// placeName never fails: lookup problems degrade to placeholder text.
// Definitive answers are cached per epoch until the dataset changes; failed
// lookups are retried on the next call.
func (s *Service) placeName(ctx context.Context, epoch string, g transform.Geodetic) string {
	if name, ok := s.places.get(epoch); ok {
		return name
	}
	name, err := s.geocoder.Reverse(ctx, g.Latitude, g.Longitude)
	switch {
	case err == nil:
		s.places.put(epoch, name)
		return name
	case errors.Is(err, geocode.ErrNoResult):
		s.places.put(epoch, PlaceOverWater)
		return PlaceOverWater
	case errors.Is(err, geocode.ErrDisabled), errors.Is(err, geocode.ErrSaturated):
		return PlaceUnavailable
	default:
		s.logger.Warn("reverse geocode failed",
			"component", "ephemeris",
			"lat", g.Latitude,
			"lon", g.Longitude,
			"error", err,
		)
		return PlaceUnavailable
	}
}

// Comments returns the dataset's comment lines.
func (s *Service) Comments() []string { return s.store.Snapshot().Comments }

// Header returns the dataset header block.
func (s *Service) Header() oem.Block { return s.store.Snapshot().Header }

// Metadata returns the dataset metadata block.
func (s *Service) Metadata() oem.Block { return s.store.Snapshot().Metadata }

// Help returns the route listing.
func (s *Service) Help() []Route { return Routes }

// DeleteAll drops every state vector, keeping header, metadata and comments.
func (s *Service) DeleteAll() *oem.Dataset {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ds := s.store.Clear()
	s.places.reset()
	metrics.SetDatasetSize(0)
	s.logger.Info("state vectors cleared", "component", "ephemeris")
	return ds
}

// Reload fetches the upstream feed and swaps in the parsed result. On any
// failure the current dataset is kept and a *oem.FetchError or
// *oem.ParseError is returned. Reloads are serialized: each fetch and publish
// completes before the next reload starts.
func (s *Service) Reload(ctx context.Context) (ds *oem.Dataset, err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ctx, span := tracing.Start(ctx, "ephemeris.reload", attribute.String("feed.source", s.source))
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.RecordReload(result, time.Since(start))
		tracing.End(span, err)
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	raw, err := s.feed.Fetch(fetchCtx)
	if err != nil {
		result = "fetch_error"
		var fe *oem.FetchError
		if !errors.As(err, &fe) {
			err = &oem.FetchError{URL: s.source, Err: err}
		}
		s.logger.Error("feed fetch failed", "component", "ephemeris", "error", err)
		return nil, err
	}

	ds, err = s.store.Replace(raw, s.source, s.now())
	if err != nil {
		result = "parse_error"
		s.logger.Error("feed parse failed, keeping current dataset",
			"component", "ephemeris",
			"bytes", len(raw),
			"error", err,
		)
		return nil, err
	}
	s.places.reset()
	span.SetAttributes(attribute.Int("dataset.state_vectors", len(ds.StateVectors)))
	metrics.SetDatasetSize(len(ds.StateVectors))
	metrics.SetDatasetAge(0)

	if s.cache != nil {
		if err := s.cache.Write(raw, ds.FetchedAt); err != nil {
			s.logger.Warn("failed to write feed cache", "component", "ephemeris", "error", err)
		}
	}

	s.logger.Info("dataset reloaded",
		"component", "ephemeris",
		"source", s.source,
		"state_vectors", len(ds.StateVectors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// LoadCached publishes the newest cached copy of the feed. It is used at
// startup when the upstream fetch fails.
func (s *Service) LoadCached() (*oem.Dataset, error) {
	if s.cache == nil {
		return nil, errors.New("feed cache not configured")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	raw, ts, err := s.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	ds, err := s.store.Replace(raw, "cache", ts)
	if err != nil {
		return nil, fmt.Errorf("cached feed: %w", err)
	}
	s.places.reset()
	metrics.SetDatasetSize(len(ds.StateVectors))
	s.logger.Info("dataset loaded from cache",
		"component", "ephemeris",
		"fetched_at", ts.UTC().Format(time.RFC3339),
		"state_vectors", len(ds.StateVectors),
	)
	return ds, nil
}

// RefreshAgeMetric updates the dataset age gauge.
func (s *Service) RefreshAgeMetric() {
	if age := s.store.AgeSeconds(); age >= 0 {
		metrics.SetDatasetAge(age)
	}
}
