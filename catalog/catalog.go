// Package catalog holds the master habit catalog: tiered habit descriptions
// keyed by area name and score.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"bienestar/models"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrEmpty   = errors.New("catalog is empty")
	ErrInvalid = errors.New("invalid catalog")
)

type Catalog struct {
	entries []models.MasterHabitEntry
}

// Normalize lower-cases, trims and collapses internal whitespace.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// New validates entries and builds a catalog.
func New(entries []models.MasterHabitEntry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		switch {
		case strings.TrimSpace(e.Name) == "":
			return nil, fmt.Errorf("%w: entry %d: missing name", ErrInvalid, i)
		case !e.Dimension.Valid():
			return nil, fmt.Errorf("%w: entry %d (%s): unknown dimension %q", ErrInvalid, i, e.Name, e.Dimension)
		case e.Score < 1 || e.Score > models.MaxScore:
			return nil, fmt.Errorf("%w: entry %d (%s): score %d out of range 1..%d", ErrInvalid, i, e.Name, e.Score, models.MaxScore)
		case strings.TrimSpace(e.Description) == "":
			return nil, fmt.Errorf("%w: entry %d (%s): missing description", ErrInvalid, i, e.Name)
		}
		k := fmt.Sprintf("%s|%d", Normalize(e.Name), e.Score)
		if seen[k] {
			return nil, fmt.Errorf("%w: entry %d: duplicate tier %d for %q", ErrInvalid, i, e.Score, e.Name)
		}
		seen[k] = true
	}

	cp := make([]models.MasterHabitEntry, len(entries))
	copy(cp, entries)
	return &Catalog{entries: cp}, nil
}

// Parse reads a YAML or JSON list of entries.
func Parse(data []byte) (*Catalog, error) {
	var entries []models.MasterHabitEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(entries)
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the bundled catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("bundled catalog is invalid: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

func (c *Catalog) Entries() []models.MasterHabitEntry {
	out := make([]models.MasterHabitEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

// Match finds the entry for an area name at an exact score.
func (c *Catalog) Match(name string, score int) (models.MasterHabitEntry, bool) {
	n := Normalize(name)
	for _, e := range c.entries {
		if e.Score == score && Normalize(e.Name) == n {
			return e, true
		}
	}
	return models.MasterHabitEntry{}, false
}

// TierOf returns the score of the entry whose name and description match.
func (c *Catalog) TierOf(name, description string) (int, bool) {
	n := strings.TrimSpace(strings.ToLower(name))
	d := strings.TrimSpace(description)
	for _, e := range c.entries {
		if strings.TrimSpace(strings.ToLower(e.Name)) == n && strings.TrimSpace(e.Description) == d {
			return e.Score, true
		}
	}
	return 0, false
}

// Areas lists the unique (dimension, name) pairs in catalog order.
func (c *Catalog) Areas() []models.AssessmentArea {
	seen := make(map[string]bool)
	var areas []models.AssessmentArea
	for i, e := range c.entries {
		k := string(e.Dimension) + "_" + e.Name
		if seen[k] {
			continue
		}
		seen[k] = true
		areas = append(areas, models.AssessmentArea{
			ID:        fmt.Sprintf("area_%d", i),
			Name:      e.Name,
			Dimension: e.Dimension,
		})
	}
	return areas
}

// Summary counts entries per dimension.
func (c *Catalog) Summary() map[models.Dimension]int {
	out := make(map[models.Dimension]int, len(models.Dimensions))
	for _, e := range c.entries {
		out[e.Dimension]++
	}
	return out
}
