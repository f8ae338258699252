// Package search ranks menu catalog items against free-text queries.
//
// Each query token scores an item by where it appears:
//
//	name +10, spirit +7, each ingredient +5, each keyword +3, description +2
//
// The sum is scaled by a fuzzy multiplier, the share of the item name's
// characters that occur in the query, floored at 0.5. Items scoring zero are
// dropped; the rest are ordered by score, then name.
//
// The catalog is a YAML file (LoadCatalog). Engine holds the current Index
// and can swap in a rebuilt one when the file changes.
package search
