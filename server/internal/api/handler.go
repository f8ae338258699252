package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/cache"
	"github.com/table1837/eightysix/server/internal/search"
)

const (
	maxBodyBytes       = 64 << 10
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Handler is the HTTP handler for all /api/* endpoints.
type Handler struct {
	manager      *availability.Manager
	search       *search.Engine
	cache        *cache.Cache
	defaultScope string
	now          func() time.Time
	mux          *http.ServeMux
}

// New creates a Handler and registers all routes. Search is served from
// engine through c; defaultScope backs the legacy /api/86-list routes and
// the availability flag on search results.
func New(m *availability.Manager, engine *search.Engine, c *cache.Cache, defaultScope string) http.Handler {
	h := &Handler{
		manager:      m,
		search:       engine,
		cache:        c,
		defaultScope: defaultScope,
		now:          time.Now,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/scopes", h.listScopes)
	h.mux.HandleFunc("/api/v1/scopes/{scope}/update", h.update)
	h.mux.HandleFunc("/api/v1/scopes/{scope}/state", h.state)
	h.mux.HandleFunc("/api/v1/search", h.searchItems)

	// Routes kept for station clients that predate scopes.
	h.mux.HandleFunc("/api/86-list/update", h.update)
	h.mux.HandleFunc("/api/86-list/state", h.legacyState)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: open scope and session counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Scopes:   len(h.manager.Scopes()),
		Sessions: h.manager.SessionCount(),
	})
}

// listScopes returns GET /api/v1/scopes: the scopes opened since startup.
func (h *Handler) listScopes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, ScopesResponse{Scopes: h.manager.Scopes()})
}

// update handles POST /api/v1/scopes/{scope}/update and the legacy
// POST /api/86-list/update. The body is an Update; legacy field names are accepted.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var u types.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&u); err != nil {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("%s: malformed body: %v", availability.ErrInvalidUpdate, err))
		return
	}

	rec, err := h.manager.Apply(r.Context(), h.scope(r), u)
	if err != nil {
		writeApplyErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

// state returns GET /api/v1/scopes/{scope}/state: every tracked record.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scope := h.scope(r)
	items, err := h.manager.Snapshot(r.Context(), scope)
	if err != nil {
		writeApplyErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, StateResponse{
		Scope:       scope,
		Items:       items,
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	})
}

// legacyState returns GET /api/86-list/state: the bare record array of the
// default scope.
func (h *Handler) legacyState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := h.manager.Snapshot(r.Context(), h.defaultScope)
	if err != nil {
		writeApplyErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, items)
}

// searchItems returns GET /api/v1/search?q=&limit=. The ranked list is served
// through the read-cache; availability is annotated per request.
func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonErr(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, hit, err := h.cache.GetOrCompute(r.Context(), q, func(context.Context) ([]byte, error) {
		return json.Marshal(h.search.Search(q, 0))
	})
	if err != nil {
		slog.Error("api: search failed", "query", q, "err", err)
		jsonErr(w, http.StatusInternalServerError, "search failed")
		return
	}
	var ranked []search.Result
	if err := json.Unmarshal(raw, &ranked); err != nil {
		jsonErr(w, http.StatusInternalServerError, "search failed")
		return
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := SearchResponse{Query: q, Count: len(ranked), Results: make([]SearchResult, 0, len(ranked))}
	unavailable := h.unavailable(r.Context())
	for _, res := range ranked {
		out.Results = append(out.Results, SearchResult{
			Result:    res,
			Available: !unavailable[res.ID] && !unavailable[res.Name],
		})
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cache.TTL().Seconds())))
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// writeApplyErr maps availability errors to HTTP status codes.
func writeApplyErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidUpdate), errors.Is(err, availability.ErrInvalidScope):
		jsonErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, availability.ErrPersistence):
		jsonErr(w, http.StatusInternalServerError, availability.ErrPersistence.Error())
	default:
		slog.Error("api: internal error", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

// scope returns the {scope} path value, or the default scope on legacy routes.
func (h *Handler) scope(r *http.Request) string {
	if s := r.PathValue("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

// unavailable returns the item keys currently 86'd in the default scope.
// A scope that cannot be read is treated as empty.
func (h *Handler) unavailable(ctx context.Context) map[string]bool {
	items, err := h.manager.Snapshot(ctx, h.defaultScope)
	if err != nil {
		slog.Warn("api: availability lookup failed", "scope", h.defaultScope, "err", err)
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, rec := range items {
		if rec.Status == types.StatusUnavailable {
			out[rec.ItemKey] = true
		}
	}
	return out
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultSearchLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit %q must be a positive integer", v)
	}
	if n > maxSearchLimit {
		n = maxSearchLimit
	}
	return n, nil
}
