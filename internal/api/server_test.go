package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/isstrack/internal/auth"
	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/geocode"
	"github.com/star/isstrack/internal/oem"
	"github.com/star/isstrack/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type stubFeed struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (f *stubFeed) Fetch(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *stubFeed) set(data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

type stubGeocoder struct{}

func (stubGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if lat > 0 {
		return "", geocode.ErrNoResult
	}
	return "Somewhere south", nil
}

type testServer struct {
	handler http.Handler
	feed    *stubFeed
	svc     *ephemeris.Service
}

func newTestServer(t *testing.T, authCfg auth.Config, load bool) *testServer {
	t.Helper()
	raw, err := os.ReadFile("../oem/testdata/ISS.OEM_J2K_EPH.xml")
	if err != nil {
		t.Fatal(err)
	}

	feed := &stubFeed{data: raw}
	svc := ephemeris.NewService(oem.NewStore(), feed, stubGeocoder{}, ephemeris.Options{
		Source: "test",
		Now:    func() time.Time { return time.Date(2024, 4, 9, 12, 5, 0, 0, time.UTC) },
	}, testLogger())
	if load {
		if _, err := svc.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	sh := stream.NewHandler(svc, stream.Config{}, testLogger())
	srv := NewServer(Config{Addr: ":0", Auth: authCfg}, svc, sh, testLogger())
	return &testServer{handler: srv.HTTPServer().Handler, feed: feed, svc: svc}
}

func (ts *testServer) do(method, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func TestRouteStatuses(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{"GET", "/", http.StatusOK},
		{"GET", "/epochs", http.StatusOK},
		{"GET", "/epochs?limit=1&offset=2", http.StatusOK},
		{"GET", "/epochs?limit=x", http.StatusBadRequest},
		{"GET", "/epochs?offset=-1", http.StatusBadRequest},
		{"GET", "/epochs/2024-100T12:00:00.000Z", http.StatusOK},
		{"GET", "/epochs/2024-100T12:00:00.000Z/speed", http.StatusOK},
		{"GET", "/epochs/2024-100T12:00:00.000Z/location", http.StatusOK},
		{"GET", "/epochs/2030-001T00:00:00.000Z", http.StatusNotFound},
		{"GET", "/epochs/2030-001T00:00:00.000Z/speed", http.StatusNotFound},
		{"GET", "/epochs/2030-001T00:00:00.000Z/location", http.StatusNotFound},
		{"GET", "/now", http.StatusOK},
		{"GET", "/comment", http.StatusOK},
		{"GET", "/header", http.StatusOK},
		{"GET", "/metadata", http.StatusOK},
		{"GET", "/help", http.StatusOK},
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/readyz", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/now/stream?interval=0", http.StatusBadRequest},
		{"GET", "/nope", http.StatusNotFound},
		{"POST", "/delete-data", http.StatusMethodNotAllowed},
		{"GET", "/post-data", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := ts.do(tt.method, tt.target)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestErrorBodiesAreJSON(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	w := ts.do("GET", "/epochs?limit=ten")
	body := decode[map[string]string](t, w)
	if !strings.Contains(body["error"], "limit") {
		t.Errorf("error = %q, want mention of limit", body["error"])
	}

	w = ts.do("GET", "/epochs/missing")
	body = decode[map[string]string](t, w)
	if !strings.Contains(body["error"], "missing") {
		t.Errorf("error = %q, want the missing key", body["error"])
	}
}

func TestDatasetEndpoints(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	all := decode[map[string]any](t, ts.do("GET", "/"))
	if svs, ok := all["state_vectors"].([]any); !ok || len(svs) != 3 {
		t.Errorf("state_vectors = %v, want 3 entries", all["state_vectors"])
	}

	epochs := decode[[]string](t, ts.do("GET", "/epochs?limit=5&offset=1"))
	if len(epochs) != 2 || epochs[0] != "2024-100T12:04:00.000Z" {
		t.Errorf("epochs = %v", epochs)
	}

	sv := decode[oem.StateVector](t, ts.do("GET", "/epochs/2024-100T12:08:00.000Z"))
	if sv.Position.X != -2220.5 {
		t.Errorf("position.x = %v, want -2220.5", sv.Position.X)
	}

	speed := decode[ephemeris.SpeedReport](t, ts.do("GET", "/epochs/2024-100T12:00:00.000Z/speed"))
	if speed.Speed != 5.0 {
		t.Errorf("speed = %v, want 5", speed.Speed)
	}

	loc := decode[ephemeris.LocationReport](t, ts.do("GET", "/epochs/2024-100T12:00:00.000Z/location"))
	if loc.Geoposition != ephemeris.PlaceOverWater {
		t.Errorf("geoposition = %q, want %q", loc.Geoposition, ephemeris.PlaceOverWater)
	}

	comments := decode[[]string](t, ts.do("GET", "/comment"))
	if len(comments) != 3 {
		t.Errorf("comments = %v", comments)
	}

	meta := decode[map[string]any](t, ts.do("GET", "/metadata"))
	if meta["OBJECT_NAME"] != "ISS" {
		t.Errorf("metadata = %v", meta)
	}

	help := decode[[]ephemeris.Route](t, ts.do("GET", "/help"))
	if len(help) != len(ephemeris.Routes) {
		t.Errorf("help has %d routes, want %d", len(help), len(ephemeris.Routes))
	}
}

func TestHelpRoutesAreServed(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	for _, r := range ephemeris.Routes {
		if r.Method != "GET" || strings.HasPrefix(r.Path, "/now/stream") {
			continue
		}
		target := strings.ReplaceAll(r.Path, "{epoch}", "2024-100T12:00:00.000Z")
		target = strings.Replace(target, "limit=int&offset=int", "limit=1&offset=0", 1)
		w := ts.do("GET", target)
		if w.Code != http.StatusOK {
			t.Errorf("%s %s: status = %d, want 200", r.Method, target, w.Code)
		}
	}
}

func TestDeleteThenReload(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	w := ts.do("DELETE", "/delete-data")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("delete body = %q, want []", got)
	}

	if w := ts.do("GET", "/now"); w.Code != http.StatusConflict {
		t.Errorf("/now after delete: status = %d, want %d", w.Code, http.StatusConflict)
	}
	if epochs := decode[[]string](t, ts.do("GET", "/epochs")); len(epochs) != 0 {
		t.Errorf("epochs after delete = %v, want empty", epochs)
	}
	header := decode[map[string]any](t, ts.do("GET", "/header"))
	if header["ORIGINATOR"] != "JSC" {
		t.Errorf("header lost after delete: %v", header)
	}

	if w := ts.do("POST", "/post-data"); w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	if epochs := decode[[]string](t, ts.do("GET", "/epochs")); len(epochs) != 3 {
		t.Errorf("epochs after reload = %v, want 3", epochs)
	}
}

func TestReloadFailures(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, true)

	ts.feed.set(nil, errors.New("upstream down"))
	if w := ts.do("POST", "/post-data"); w.Code != http.StatusBadGateway {
		t.Errorf("fetch failure: status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	ts.feed.set([]byte("<ndm><oem/></ndm>"), nil)
	if w := ts.do("POST", "/post-data"); w.Code != http.StatusBadGateway {
		t.Errorf("parse failure: status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	if epochs := decode[[]string](t, ts.do("GET", "/epochs")); len(epochs) != 3 {
		t.Errorf("dataset changed after failed reloads: %v", epochs)
	}
}

func TestReadyzBeforeLoad(t *testing.T) {
	ts := newTestServer(t, auth.Config{}, false)

	if w := ts.do("GET", "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w := ts.do("GET", "/now"); w.Code != http.StatusConflict {
		t.Errorf("/now status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAuthGuardsMutations(t *testing.T) {
	ts := newTestServer(t, auth.Config{Enabled: true, Token: "tok"}, true)

	if w := ts.do("GET", "/now"); w.Code != http.StatusOK {
		t.Errorf("GET /now status = %d, want 200", w.Code)
	}
	if w := ts.do("DELETE", "/delete-data"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated delete status = %d, want 401", w.Code)
	}
	if len(ts.svc.All().StateVectors) != 3 {
		t.Error("unauthenticated delete modified the dataset")
	}
	if w := ts.do("DELETE", "/delete-data", "Authorization", "Bearer tok"); w.Code != http.StatusOK {
		t.Errorf("authenticated delete status = %d, want 200", w.Code)
	}
}
