package search

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one searchable menu entry.
type Item struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Spirit      string   `yaml:"spirit,omitempty" json:"spirit,omitempty"`
	Ingredients []string `yaml:"ingredients,omitempty" json:"ingredients,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Price       *float64 `yaml:"price,omitempty" json:"price,omitempty"`
}

// catalogFile is the on-disk layout:
//
//	items:
//	  - id: old-fashioned
//	    name: Old Fashioned
//	    category: cocktail
//	    spirit: bourbon
type catalogFile struct {
	Items []Item `yaml:"items"`
}

// LoadCatalog reads and validates the catalog at path.
func LoadCatalog(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("search catalog: read %q: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) ([]Item, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("search catalog: parse yaml: %w", err)
	}

	seen := make(map[string]bool, len(f.Items))
	for i, it := range f.Items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("search catalog: items[%d]: name is required", i)
		}
		if it.ID == "" {
			f.Items[i].ID = it.Name
		}
		if seen[f.Items[i].ID] {
			return nil, fmt.Errorf("search catalog: items[%d]: duplicate id %q", i, f.Items[i].ID)
		}
		seen[f.Items[i].ID] = true
	}
	return f.Items, nil
}
