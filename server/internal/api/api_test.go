package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/api"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/cache"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/search"
)

// --- test helpers -----------------------------------------------------------

var catalog = []search.Item{
	{ID: "negroni", Name: "Negroni", Category: "cocktail", Spirit: "gin", Ingredients: []string{"gin", "campari", "sweet vermouth"}},
	{ID: "martini", Name: "Martini", Category: "cocktail", Spirit: "gin", Ingredients: []string{"gin", "dry vermouth"}},
	{ID: "margarita", Name: "Margarita", Category: "cocktail", Spirit: "tequila", Ingredients: []string{"tequila", "lime juice"}},
}

type brokenBackend struct{}

func (brokenBackend) Bucket(string) kv.Store { return brokenStore{} }
func (brokenBackend) Close() error           { return nil }

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }
func (brokenStore) List(context.Context) ([]kv.Pair, error)  { return nil, nil }

func newHandler(t *testing.T, backend kv.Backend) (http.Handler, *availability.Manager) {
	t.Helper()
	m := availability.NewManager(backend, availability.Options{})
	engine := search.NewEngine(search.NewIndex(catalog))
	return api.New(m, engine, cache.New(5*time.Minute), "global"), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- update -----------------------------------------------------------------

func TestUpdate_AppliesRecord(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	rr := post(t, h, "/api/v1/scopes/bar/update",
		`{"item_key":"Negroni","status":"unavailable","actor_id":"u1","reason":"no Campari"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var rec types.Record
	decode(t, rr, &rec)
	if rec.ItemKey != "Negroni" || rec.Status != types.StatusUnavailable || rec.AppliedAt.IsZero() {
		t.Errorf("record: got %+v", rec)
	}
}

func TestUpdate_LastWriteWinsVisibleInState(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	post(t, h, "/api/v1/scopes/bar/update", `{"item_key":"Negroni","status":"unavailable","actor_id":"u1"}`)
	post(t, h, "/api/v1/scopes/bar/update", `{"item_key":"Negroni","status":"available","actor_id":"u2"}`)

	rr := get(t, h, "/api/v1/scopes/bar/state")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.StateResponse
	decode(t, rr, &resp)
	if resp.Scope != "bar" || len(resp.Items) != 1 {
		t.Fatalf("state: got %+v", resp)
	}
	if resp.Items[0].Status != types.StatusAvailable || resp.Items[0].ActorID != "u2" {
		t.Errorf("item: got %+v", resp.Items[0])
	}
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("generated_at %q: %v", resp.GeneratedAt, err)
	}
}

func TestUpdate_InvalidBodies(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"item_key":`},
		{"empty item key", `{"item_key":"  ","status":"unavailable","actor_id":"u1"}`},
		{"unknown status", `{"item_key":"x","status":"gone","actor_id":"u1"}`},
		{"missing actor", `{"item_key":"x","status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, h, "/api/v1/scopes/bar/update", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			var e map[string]string
			decode(t, rr, &e)
			if !strings.Contains(e["error"], "invalid update") {
				t.Errorf("error: got %q", e["error"])
			}
		})
	}

	var state api.StateResponse
	decode(t, get(t, h, "/api/v1/scopes/bar/state"), &state)
	if len(state.Items) != 0 {
		t.Errorf("state after invalid updates: got %d items, want 0", len(state.Items))
	}
}

func TestUpdate_InvalidScope(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	rr := post(t, h, "/api/v1/scopes/"+strings.Repeat("s", 65)+"/update",
		`{"item_key":"x","status":"unavailable","actor_id":"u1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestUpdate_PersistenceFailure(t *testing.T) {
	h, _ := newHandler(t, brokenBackend{})
	rr := post(t, h, "/api/v1/scopes/bar/update", `{"item_key":"x","status":"unavailable","actor_id":"u1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	var e map[string]string
	decode(t, rr, &e)
	if e["error"] != "persistence failure" {
		t.Errorf("error: got %q, want persistence failure", e["error"])
	}
}

func TestUpdate_LegacyRouteAndAliases(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	rr := post(t, h, "/api/86-list/update", `{"item_name":"Margarita","action":"86","user_id":"u7"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	rr = get(t, h, "/api/86-list/state")
	var items []types.Record
	decode(t, rr, &items)
	if len(items) != 1 || items[0].ItemKey != "Margarita" || items[0].ActorID != "u7" {
		t.Errorf("legacy state: got %+v", items)
	}

	var state api.StateResponse
	decode(t, get(t, h, "/api/v1/scopes/global/state"), &state)
	if len(state.Items) != 1 {
		t.Errorf("default scope items: got %d, want 1", len(state.Items))
	}
}

func TestLegacyState_EmptyIsArray(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	rr := get(t, h, "/api/86-list/state")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("body: got %s, want []", body)
	}
}

// --- scopes / health ---------------------------------------------------------

func TestScopesAndHealth(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	post(t, h, "/api/v1/scopes/kitchen/update", `{"item_key":"Soup","status":"unavailable","actor_id":"u1"}`)
	post(t, h, "/api/v1/scopes/bar/update", `{"item_key":"Negroni","status":"unavailable","actor_id":"u1"}`)

	var scopes api.ScopesResponse
	decode(t, get(t, h, "/api/v1/scopes"), &scopes)
	if len(scopes.Scopes) != 2 || scopes.Scopes[0] != "bar" || scopes.Scopes[1] != "kitchen" {
		t.Errorf("scopes: got %v", scopes.Scopes)
	}

	var health api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &health)
	if health.Status != "ok" || health.Scopes != 2 || health.Sessions != 0 {
		t.Errorf("health: got %+v", health)
	}
}

// --- search -----------------------------------------------------------------

func TestSearch_MissThenHit(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())

	rr := get(t, h, "/api/v1/search?q=gin")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache: got %q, want MISS", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=300" {
		t.Errorf("Cache-Control: got %q", got)
	}
	var first api.SearchResponse
	decode(t, rr, &first)
	if first.Count != 2 {
		t.Fatalf("count: got %d, want 2 (%+v)", first.Count, first.Results)
	}

	// Same query, different case and spacing: same cache entry.
	rr = get(t, h, "/api/v1/search?q=%20GIN%20")
	if got := rr.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache: got %q, want HIT", got)
	}
}

func TestSearch_AvailabilityAnnotatedPerRequest(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())

	var before api.SearchResponse
	decode(t, get(t, h, "/api/v1/search?q=negroni"), &before)
	if len(before.Results) == 0 || !before.Results[0].Available {
		t.Fatalf("before: got %+v", before.Results)
	}

	post(t, h, "/api/86-list/update", `{"item_key":"negroni","status":"unavailable","actor_id":"u1"}`)

	rr := get(t, h, "/api/v1/search?q=negroni")
	if rr.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache: got %q, want HIT", rr.Header().Get("X-Cache"))
	}
	var after api.SearchResponse
	decode(t, rr, &after)
	if after.Results[0].Available {
		t.Errorf("after 86: Negroni still reported available")
	}
}

func TestSearch_Limit(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	var resp api.SearchResponse
	decode(t, get(t, h, "/api/v1/search?q=gin&limit=1"), &resp)
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Errorf("limit=1: got %d results", len(resp.Results))
	}
}

func TestSearch_BadRequests(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	for _, path := range []string{"/api/v1/search", "/api/v1/search?q=%20", "/api/v1/search?q=gin&limit=-1", "/api/v1/search?q=gin&limit=x"} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Errorf("GET %s: got %d, want 400", path, rr.Code)
		}
	}
}

// --- method checks ----------------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t, kv.NewMemory())
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/scopes/bar/update"},
		{http.MethodPost, "/api/v1/scopes/bar/state"},
		{http.MethodPost, "/api/v1/health"},
		{http.MethodPost, "/api/v1/scopes"},
		{http.MethodDelete, "/api/v1/search?q=gin"},
		{http.MethodGet, "/api/86-list/update"},
		{http.MethodPost, "/api/86-list/state"},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(c.method, c.path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: got %d, want 405", c.method, c.path, rr.Code)
		}
	}
}
