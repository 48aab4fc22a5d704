// Package catalog provides the ordered, read-only challenge catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/challengely/challengely/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is an ordered list of challenges. It is immutable after
// construction; sessions hold an index into it rather than copies.
type Catalog struct {
	challenges []domain.Challenge
}

type catalogFile struct {
	Challenges []domain.Challenge `yaml:"challenges"`
}

// New builds a catalog from the given challenges.
func New(challenges []domain.Challenge) *Catalog {
	cs := make([]domain.Challenge, len(challenges))
	copy(cs, challenges)
	return &Catalog{challenges: cs}
}

// Default returns the built-in sample catalog.
func Default() *Catalog {
	c, err := parse(defaultCatalogYAML)
	if err != nil {
		// The embedded file is validated by tests; reaching here means a
		// broken build, not a runtime condition.
		panic("catalog: embedded catalog is invalid: " + err.Error())
	}
	return c
}

// LoadFile reads a YAML catalog from path. A missing, unreadable, or empty
// file falls back to the built-in default.
func LoadFile(path string) *Catalog {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Catalog file unreadable, using default", "path", path, "error", err)
		return Default()
	}
	c, err := parse(data)
	if err != nil || c.Len() == 0 {
		slog.Warn("Catalog file invalid or empty, using default", "path", path, "error", err)
		return Default()
	}
	return c
}

func parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range f.Challenges {
		if !f.Challenges[i].Difficulty.Valid() {
			f.Challenges[i].Difficulty = domain.DifficultyMedium
		}
	}
	return New(f.Challenges), nil
}

// Len returns the number of challenges in the catalog.
func (c *Catalog) Len() int {
	return len(c.challenges)
}

// Get returns the challenge at index i, or the sentinel challenge when the
// catalog is empty or i is out of range (e.g. the catalog shrank across an
// update while a persisted index still points past the end).
func (c *Catalog) Get(i int) domain.Challenge {
	if i < 0 || i >= len(c.challenges) {
		return domain.NoChallenge()
	}
	return c.challenges[i]
}

// All returns a copy of the challenge list.
func (c *Catalog) All() []domain.Challenge {
	out := make([]domain.Challenge, len(c.challenges))
	copy(out, c.challenges)
	return out
}
