package search

import (
	"sort"
	"strings"
	"sync/atomic"
)

// Relevance weights per matching field.
const (
	weightName        = 10.0
	weightSpirit      = 7.0
	weightIngredient  = 5.0
	weightKeyword     = 3.0
	weightDescription = 2.0

	minFuzzyMultiplier = 0.5
)

// Result is one ranked match.
type Result struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Index is an immutable searchable view of a catalog.
type Index struct {
	items       []Item
	lowered     []loweredItem
	ingredients map[string][]int // lowercased ingredient -> item positions
}

// loweredItem caches the lowercased fields of an Item.
type loweredItem struct {
	name        string
	spirit      string
	ingredients []string
	keywords    []string
	description string
}

// NewIndex builds an Index over items.
func NewIndex(items []Item) *Index {
	ix := &Index{
		items:       items,
		lowered:     make([]loweredItem, len(items)),
		ingredients: make(map[string][]int),
	}
	for i, it := range items {
		l := loweredItem{
			name:        strings.ToLower(it.Name),
			spirit:      strings.ToLower(it.Spirit),
			description: strings.ToLower(it.Description),
		}
		for _, ing := range it.Ingredients {
			key := strings.ToLower(ing)
			l.ingredients = append(l.ingredients, key)
			ix.ingredients[key] = append(ix.ingredients[key], i)
		}
		for _, kw := range it.Keywords {
			l.keywords = append(l.keywords, strings.ToLower(kw))
		}
		ix.lowered[i] = l
	}
	return ix
}

// Len returns the number of indexed items.
func (ix *Index) Len() int { return len(ix.items) }

// Search returns up to limit items ranked by relevance to query.
// A limit <= 0 returns every match.
func (ix *Index) Search(query string, limit int) []Result {
	q := strings.ToLower(query)
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return []Result{}
	}
	joined := strings.Join(tokens, " ")

	out := make([]Result, 0)
	for i, it := range ix.items {
		score := relevance(ix.lowered[i], tokens)
		if score <= 0 {
			continue
		}
		score *= fuzzyMultiplier(ix.lowered[i].name, joined)
		out = append(out, Result{ID: it.ID, Name: it.Name, Category: it.Category, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ByIngredient returns every item listing ingredient (case-insensitive exact match).
func (ix *Index) ByIngredient(ingredient string) []Item {
	positions := ix.ingredients[strings.ToLower(strings.TrimSpace(ingredient))]
	out := make([]Item, 0, len(positions))
	for _, p := range positions {
		out = append(out, ix.items[p])
	}
	return out
}

func relevance(it loweredItem, tokens []string) float64 {
	var score float64
	for _, tok := range tokens {
		if strings.Contains(it.name, tok) {
			score += weightName
		}
		if it.spirit != "" && strings.Contains(it.spirit, tok) {
			score += weightSpirit
		}
		for _, ing := range it.ingredients {
			if strings.Contains(ing, tok) {
				score += weightIngredient
			}
		}
		if strings.Contains(it.description, tok) {
			score += weightDescription
		}
		for _, kw := range it.keywords {
			if strings.Contains(kw, tok) {
				score += weightKeyword
			}
		}
	}
	return score
}

// fuzzyMultiplier is the share of name's characters that occur anywhere in
// query, relative to the longer of the two, floored at minFuzzyMultiplier.
func fuzzyMultiplier(name, query string) float64 {
	nameRunes := []rune(name)
	maxLen := len(nameRunes)
	if n := len([]rune(query)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return minFuzzyMultiplier
	}
	common := 0
	for _, r := range nameRunes {
		if strings.ContainsRune(query, r) {
			common++
		}
	}
	m := float64(common) / float64(maxLen)
	if m < minFuzzyMultiplier {
		return minFuzzyMultiplier
	}
	return m
}

// Engine holds the current Index and allows it to be replaced atomically.
type Engine struct {
	cur atomic.Pointer[Index]
}

// NewEngine creates an Engine serving ix. A nil ix serves an empty catalog.
func NewEngine(ix *Index) *Engine {
	e := &Engine{}
	e.Replace(ix)
	return e
}

// Index returns the index currently being served.
func (e *Engine) Index() *Index { return e.cur.Load() }

// Replace swaps in ix for subsequent searches.
func (e *Engine) Replace(ix *Index) {
	if ix == nil {
		ix = NewIndex(nil)
	}
	e.cur.Store(ix)
}

// Search ranks against the current index.
func (e *Engine) Search(query string, limit int) []Result {
	return e.Index().Search(query, limit)
}
