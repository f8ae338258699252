package api

import (
	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/search"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Scopes   int    `json:"scopes"`
	Sessions int    `json:"sessions"`
}

// StateResponse is the payload for GET /api/v1/scopes/{scope}/state.
type StateResponse struct {
	Scope       string         `json:"scope"`
	Items       []types.Record `json:"items"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// ScopesResponse is the payload for GET /api/v1/scopes.
type ScopesResponse struct {
	Scopes []string `json:"scopes"`
}

// SearchResult is one ranked catalog match. Available is false while the
// item is 86'd in the default scope.
type SearchResult struct {
	search.Result
	Available bool `json:"available"`
}

// SearchResponse is the payload for GET /api/v1/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}
