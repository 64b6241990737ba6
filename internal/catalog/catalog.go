// Package catalog maps complaint category identifiers to display labels.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

// Entry is a single complaint category.
type Entry struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type file struct {
	Categories []Entry `yaml:"categories"`
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	entries []Entry
	labels  map[string]string
}

// New builds a catalog. IDs must be unique and non-empty.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		labels:  make(map[string]string, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("category %d: id cannot be empty", i)
		}
		if e.Label == "" {
			return nil, fmt.Errorf("category %q: label cannot be empty", e.ID)
		}
		if _, dup := c.labels[e.ID]; dup {
			return nil, fmt.Errorf("category %q: duplicate id", e.ID)
		}
		c.labels[e.ID] = e.Label
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Parse decodes a YAML category list.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Categories)
}

// Load reads a YAML category list from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Catalog loaded", "path", path, "count", len(c.entries))
	return c, nil
}

// Default returns the built-in categories.
func Default() *Catalog {
	c, err := Parse(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded categories are invalid: %v", err))
	}
	return c
}

// Lookup returns the label for id, or id itself when the category is
// unknown so free-text problems flow through the same field.
func (c *Catalog) Lookup(id string) string {
	if label, ok := c.labels[id]; ok {
		return label
	}
	return id
}

// Has reports whether id is a known category.
func (c *Catalog) Has(id string) bool {
	_, ok := c.labels[id]
	return ok
}

// Entries returns the categories in display order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.entries)
}
