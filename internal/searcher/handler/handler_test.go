package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var hotels = corpus.StaticLoader{
	"A.txt": "Lake View Resort",
	"B.txt": "Mountain Lodge",
}

type swappableLoader struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
}

func (l *swappableLoader) Load(context.Context) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.texts, l.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*executor.SearchResult
	hits    int64
	misses  int64
}

// GetOrCompute keys on the normalized tokens and hands back the stored result
// as is, including the raw query of whoever filled the entry.
func (c *memoryCache) GetOrCompute(ctx context.Context, version, query string, limit int, fn func(context.Context) (*executor.SearchResult, error)) (*executor.SearchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := version + "|" + strings.Join(tokenizer.Tokenize(query), " ")
	if r, ok := c.entries[key]; ok {
		c.hits++
		return r, true, nil
	}
	c.misses++
	r, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}
	c.entries[key] = r
	return r, false, nil
}

func (c *memoryCache) Invalidate(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.entries))
	c.entries = map[string]*executor.SearchResult{}
	return n, nil
}

func (c *memoryCache) Stats() (int64, int64) { return c.hits, c.misses }

type eventLog struct {
	mu     sync.Mutex
	events []any
}

func (e *eventLog) Track(event any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

type fixture struct {
	mux     *http.ServeMux
	manager *corpus.Manager
	cache   *memoryCache
	events  *eventLog
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, loader corpus.Loader, load bool) *fixture {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	mgr := corpus.NewManager(loader, m)
	if load {
		if _, _, err := mgr.Refresh(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	f := &fixture{
		mux:     http.NewServeMux(),
		manager: mgr,
		cache:   &memoryCache{entries: map[string]*executor.SearchResult{}},
		events:  &eventLog{},
		metrics: m,
	}
	h := New(executor.New(mgr), mgr, f.cache, f.events, m, Options{DefaultLimit: 5, MaxResults: 50, ScorePlaces: 4})
	h.Register(f.mux)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestSearchGet(t *testing.T) {
	f := newFixture(t, hotels, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake+resort", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[executor.SearchResult](t, rec)
	if len(res.Results) != 2 || res.Results[0].DocID != "A.txt" {
		t.Fatalf("results = %+v", res.Results)
	}
	if res.Results[0].Score != 0.5625 {
		t.Errorf("A.txt score = %v, want 0.5625", res.Results[0].Score)
	}
	if res.Results[1].Score != 0.1837 {
		t.Errorf("B.txt score = %v, want 0.1837 after rounding", res.Results[1].Score)
	}
}

func TestSearchPostForm(t *testing.T) {
	f := newFixture(t, hotels, true)
	body := url.Values{"query": {"Mountain"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[executor.SearchResult](t, rec)
	if res.Results[0].DocID != "B.txt" {
		t.Errorf("top result = %s, want B.txt", res.Results[0].DocID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, hotels, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[executor.SearchResult](t, rec)
	if len(res.Results) != 2 || res.Results[0].Score != 1 || res.Results[0].DocID != "A.txt" {
		t.Errorf("results = %+v", res.Results)
	}
	if got := testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("empty_query")); got != 1 {
		t.Errorf("empty_query counter = %v", got)
	}
}

func TestSearchLimit(t *testing.T) {
	f := newFixture(t, hotels, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake&limit=1", nil))
	if res := decode[executor.SearchResult](t, rec); len(res.Results) != 1 {
		t.Errorf("got %d results, want 1", len(res.Results))
	}
	for _, bad := range []string{"0", "-2", "abc"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake&limit="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestSearchBeforeLoad(t *testing.T) {
	f := newFixture(t, hotels, false)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSearchUsesCacheAndTracks(t *testing.T) {
	f := newFixture(t, hotels, true)
	for i, want := range []string{"MISS", "HIT"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get(CacheHeader); got != want {
			t.Errorf("request %d: %s = %q, want %q", i, CacheHeader, got, want)
		}
	}
	if hits, misses := f.cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("cache = %d hits / %d misses", hits, misses)
	}
	if len(f.events.events) != 2 {
		t.Fatalf("tracked %d events, want 2", len(f.events.events))
	}
	second := f.events.events[1].(analytics.SearchEvent)
	if !second.CacheHit || second.ResultIDs[0] != "A.txt" || second.Terms[0] != "lake" {
		t.Errorf("second event = %+v", second)
	}
}

func TestSearchCacheHitEchoesRawQuery(t *testing.T) {
	f := newFixture(t, hotels, true)
	for i, raw := range []string{"lake resort", "LAKE, Resort!!"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q="+url.QueryEscape(raw), nil))
		res := decode[executor.SearchResult](t, rec)
		if res.Query != raw {
			t.Errorf("request %d: query = %q, want %q", i, res.Query, raw)
		}
		if len(res.Results) == 0 || res.Results[0].DocID != "A.txt" {
			t.Errorf("request %d: results = %+v", i, res.Results)
		}
	}
	if hits, _ := f.cache.Stats(); hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestSearchExplainBypassesCache(t *testing.T) {
	f := newFixture(t, hotels, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake&explain=true", nil))
	res := decode[executor.SearchResult](t, rec)
	if len(res.Explanations["A.txt"]) != 1 {
		t.Errorf("explanations = %+v", res.Explanations)
	}
	if len(res.Timings) == 0 || res.Timings[0].Span != "execute" {
		t.Errorf("timings = %+v", res.Timings)
	}
	if hits, misses := f.cache.Stats(); hits+misses != 0 {
		t.Error("explain request went through the cache")
	}
}

func TestReloadAndStats(t *testing.T) {
	loader := &swappableLoader{texts: map[string]string{"A.txt": "Lake View Resort"}}
	f := newFixture(t, loader, true)
	before := f.manager.Current().Version

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/corpus/reload", nil))
	if body := decode[map[string]any](t, rec); body["changed"] != false {
		t.Errorf("unchanged reload body = %v", body)
	}

	loader.mu.Lock()
	loader.texts = map[string]string{"A.txt": "Lake View Resort", "B.txt": "Mountain Lodge"}
	loader.mu.Unlock()
	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/corpus/reload", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["changed"] != true {
		t.Errorf("changed reload body = %v", body)
	}
	if f.manager.Current().Version == before {
		t.Error("version did not change")
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/corpus/stats", nil))
	body := decode[struct {
		Corpus corpus.Summary `json:"corpus"`
	}](t, rec)
	if body.Corpus.Documents != 2 || body.Corpus.VocabularySize != 5 || body.Corpus.Tokens != 5 {
		t.Errorf("stats = %+v", body.Corpus)
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	loader := &swappableLoader{texts: map[string]string{"A.txt": "Lake"}}
	f := newFixture(t, loader, true)

	loader.mu.Lock()
	loader.err = apperrors.New(apperrors.ErrDecoding, http.StatusUnprocessableEntity, "B.txt is not valid UTF-8")
	loader.mu.Unlock()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/corpus/reload", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("search after failed reload = %d", rec.Code)
	}
	stats := decode[map[string]any](t, f.do(httptest.NewRequest(http.MethodGet, "/api/v1/corpus/stats", nil)))
	if _, ok := stats["last_reload_error"]; !ok {
		t.Errorf("stats missing last_reload_error: %v", stats)
	}
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t, hotels, true)
	f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lake", nil))

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if body := decode[map[string]any](t, rec); body["keys_deleted"] != float64(1) {
		t.Errorf("invalidate body = %v", body)
	}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if body := decode[map[string]any](t, rec); body["total"] != float64(1) {
		t.Errorf("stats body = %v", body)
	}
}

func TestCacheDisabled(t *testing.T) {
	mgr := corpus.NewManager(hotels, nil)
	h := New(executor.New(mgr), mgr, nil, nil, nil, Options{})
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	h := New(nil, nil, nil, nil, nil, Options{})
	rec := httptest.NewRecorder()
	h.writeError(rec, errors.New("dial tcp 10.0.0.3:5432: refused"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Errorf("status %d body %s", rec.Code, rec.Body)
	}
}
