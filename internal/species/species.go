// Package species is the read-only catalog used to resolve a report's
// species id to a display name.
package species

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Species struct {
	ID             string `json:"id" yaml:"id"`
	CommonName     string `json:"common_name" yaml:"common_name"`
	ScientificName string `json:"scientific_name" yaml:"scientific_name"`
	Category       string `json:"category,omitempty" yaml:"category"`
	NativeRange    string `json:"native_range,omitempty" yaml:"native_range"`
}

// DisplayName prefers the common name and falls back to the scientific name.
func (s Species) DisplayName() string {
	if strings.TrimSpace(s.CommonName) != "" {
		return s.CommonName
	}
	return s.ScientificName
}

type Catalog struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Species
}

func NewCatalog(items ...Species) *Catalog {
	c := &Catalog{byID: make(map[string]Species)}
	for _, s := range items {
		c.add(s)
	}
	return c
}

func (c *Catalog) add(s Species) {
	if strings.TrimSpace(s.ID) == "" {
		return
	}
	if _, ok := c.byID[s.ID]; !ok {
		c.order = append(c.order, s.ID)
	}
	c.byID[s.ID] = s
}

// List returns up to limit species in catalog order; limit <= 0 means all.
func (c *Catalog) List(limit int) []Species {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Species, 0, n)
	for _, id := range c.order[:n] {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Get(id string) (Species, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// DisplayName resolves id, returning the id itself for unknown species.
func (c *Catalog) DisplayName(id string) string {
	if s, ok := c.Get(id); ok {
		return s.DisplayName()
	}
	return id
}

// Names is the id -> display name lookup table used by exports.
func (c *Catalog) Names() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.byID))
	for id, s := range c.byID {
		out[id] = s.DisplayName()
	}
	return out
}

type catalogFile struct {
	Species []Species `yaml:"species"`
}

func Parse(data []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode species catalog: %w", err)
	}
	return NewCatalog(cf.Species...), nil
}
