package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	"github.com/couchcryptid/crime-stats-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSource) Counts(_ context.Context, locs []domain.Location, _ []domain.Period) (domain.Counts, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	all := domain.Counts{"London": 6729, "Manchester": 92, "Liverpool": 1253}
	out := domain.Counts{}
	for _, l := range locs {
		out[l.Name] = all[l.Name]
	}
	return out, nil
}

func (s *stubSource) CategoryCounts(_ context.Context, _ domain.Location, _ []domain.Period) (domain.CategoryCounts, error) {
	if s.err != nil {
		return nil, s.err
	}
	return domain.CategoryCounts{"other-theft": 300, "violent-crime": 94, "anti-social-behaviour": 93, "possession-of-weapons": 4}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, src pipeline.Source, readyErr error) *httpadapter.Server {
	t.Helper()
	g, dupes := domain.NewGazetteer([]domain.Location{
		{Name: "London", Lat: 51.5072, Lng: -0.1275, Population: 11262000},
		{Name: "Manchester", Lat: 53.4794, Lng: -2.2453, Population: 2705000},
		{Name: "Liverpool", Lat: 53.4075, Lng: -2.9919, Population: 864122},
	})
	require.Empty(t, dupes)
	opts := pipeline.Options{
		Timeout:     time.Second,
		MaxAttempts: 1,
		Backoff:     time.Millisecond,
		Clock:       clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}
	p := pipeline.New(g, src, pipeline.NewMemoryCaches(discardLogger()), opts, discardLogger(), observability.NewMetricsForTesting())
	return httpadapter.NewServer(":0", p, &mockReadiness{err: readyErr}, 2, discardLogger())
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(t, newTestServer(t, &stubSource{}, nil), "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		get(t, newTestServer(t, &stubSource{}, errors.New("reference table not loaded")), "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTotals(t *testing.T) {
	srv := newTestServer(t, &stubSource{}, nil)
	rec := get(t, srv, "/api/v1/totals?locations=London,Manchester&locations=Liverpool&start=2020-01&end=2020-03")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	res := decode[pipeline.TotalsResult](t, rec)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Manchester", res.Rows[0].Location)
	assert.Equal(t, "Liverpool", res.Rows[1].Location)
	assert.Equal(t, "London", res.Rows[2].Location)
	assert.Equal(t, []domain.Period{"2020-01", "2020-02", "2020-03"}, res.Periods)
	assert.False(t, res.Cached)

	again := decode[pipeline.TotalsResult](t, get(t, srv, "/api/v1/totals?locations=London,Manchester,Liverpool&start=2020-01&end=2020-03&order=desc"))
	assert.True(t, again.Cached)
	assert.Equal(t, "London", again.Rows[0].Location)
}

func TestTotals_SortByFractional(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/api/v1/totals?locations=London,Liverpool&stat=fractional")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[pipeline.TotalsResult](t, rec)
	assert.Equal(t, domain.StatFractional, res.StatType)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "London", res.Rows[0].Location)
}

func TestTotals_DegradedIsOK(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{err: errors.New("upstream down")}, nil), "/api/v1/totals?locations=London")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[pipeline.TotalsResult](t, rec)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Rows)
	assert.Contains(t, res.Error, "upstream down")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown location", "/api/v1/totals?locations=Atlantis", http.StatusNotFound},
		{"start after end", "/api/v1/totals?locations=London&start=2021-01&end=2020-01", http.StatusBadRequest},
		{"malformed month", "/api/v1/map?locations=London&start=2020-13&end=2021-01", http.StatusBadRequest},
		{"half a range", "/api/v1/totals?locations=London&start=2020-01", http.StatusBadRequest},
		{"unknown sort column", "/api/v1/totals?locations=London&sort=height", http.StatusBadRequest},
		{"bad order", "/api/v1/map?locations=London&order=sideways", http.StatusBadRequest},
		{"map order without sort", "/api/v1/map?locations=London&order=desc", http.StatusBadRequest},
		{"bad stat", "/api/v1/totals?locations=London&stat=median", http.StatusBadRequest},
		{"missing category location", "/api/v1/categories", http.StatusBadRequest},
		{"unknown category location", "/api/v1/categories?location=Atlantis", http.StatusNotFound},
		{"periods without range", "/api/v1/periods", http.StatusBadRequest},
		{"negative limit", "/api/v1/locations?limit=-1", http.StatusBadRequest},
	}
	srv := newTestServer(t, &stubSource{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMap(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/api/v1/map?locations=Liverpool,London")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[pipeline.MapResult](t, rec)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Liverpool", res.Rows[0].Location)
	assert.InDelta(t, 53.4075, res.Rows[0].Lat, 1e-9)
	assert.Equal(t, "London", res.Rows[1].Location)
}

func TestCategories(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/api/v1/categories?location=London")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[pipeline.CategoryResult](t, rec)
	assert.Equal(t, "London", res.Location)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, domain.CategoryLabel("other-theft"), res.Rows[0].Category)
}

func TestPeriods(t *testing.T) {
	rec := get(t, newTestServer(t, &stubSource{}, nil), "/api/v1/periods?start=2019-11&end=2020-02")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]domain.Period](t, rec)
	assert.Equal(t, []domain.Period{"2019-11", "2019-12", "2020-01", "2020-02"}, body["periods"])
}

func TestLocations(t *testing.T) {
	srv := newTestServer(t, &stubSource{}, nil)

	body := decode[map[string][]string](t, get(t, srv, "/api/v1/locations"))
	assert.Equal(t, []string{"London", "Manchester"}, body["locations"])

	body = decode[map[string][]string](t, get(t, srv, "/api/v1/locations?limit=10"))
	assert.Len(t, body["locations"], 3)
}

func TestCacheStats(t *testing.T) {
	src := &stubSource{}
	srv := newTestServer(t, src, nil)
	get(t, srv, "/api/v1/totals?locations=London")
	get(t, srv, "/api/v1/totals?locations=London")

	stats := decode[map[string]memo.Stats](t, get(t, srv, "/api/v1/cache"))
	assert.Equal(t, int64(1), stats[domain.KindTotals].Hits)
	assert.Equal(t, int64(1), stats[domain.KindTotals].Misses)
	assert.Equal(t, int64(1), stats[domain.KindTotals].Size)
	assert.Equal(t, 1, src.calls)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubSource{}, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/totals", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
