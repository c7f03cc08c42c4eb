// Package survey scores the student inventories (learning styles, multiple
// intelligences, Holland career interests) and stores their results.
package survey

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed banks/*.yaml
var banks embed.FS

// Survey identifiers.
const (
	LearningStyles        = "ogrenme-stilleri"
	MultipleIntelligences = "coklu-zeka"
	Holland               = "holland"
)

// Result kinds a definition can ask for on top of the scores.
const (
	resultDominant = "dominant"
	resultCode     = "code"
)

// Definition is one question bank.
type Definition struct {
	ID         string     `yaml:"id" json:"id"`
	Title      string     `yaml:"title" json:"title"`
	Result     string     `yaml:"result,omitempty" json:"result,omitempty"`
	Answers    []Answer   `yaml:"answers" json:"answers"`
	Categories []Category `yaml:"categories" json:"categories"`
	Questions  []Question `yaml:"questions" json:"questions"`
}

// Answer is one option on the answer scale.
type Answer struct {
	Value int    `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Category is a scored trait. Declaration order is the ranking tie-break.
type Category struct {
	Key         string   `yaml:"key" json:"key"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Professions []string `yaml:"professions,omitempty" json:"professions,omitempty"`
}

// Question maps a statement to the category it scores.
type Question struct {
	Text     string `yaml:"text" json:"text"`
	Category string `yaml:"category" json:"category"`
}

// Category returns the category with key.
func (d *Definition) Category(key string) (Category, bool) {
	for _, c := range d.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

func (d *Definition) validAnswer(v int) bool {
	for _, a := range d.Answers {
		if a.Value == v {
			return true
		}
	}
	return false
}

func (d *Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("survey id is empty")
	}
	if len(d.Answers) == 0 || len(d.Categories) == 0 || len(d.Questions) == 0 {
		return fmt.Errorf("survey %s: answers, categories and questions are required", d.ID)
	}
	seen := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		if seen[c.Key] {
			return fmt.Errorf("survey %s: duplicate category %q", d.ID, c.Key)
		}
		seen[c.Key] = true
	}
	for i, q := range d.Questions {
		if !seen[q.Category] {
			return fmt.Errorf("survey %s: question %d has unknown category %q", d.ID, i, q.Category)
		}
	}
	if d.Result == resultCode && len(d.Categories) < 3 {
		return fmt.Errorf("survey %s: a code needs at least three categories", d.ID)
	}
	return nil
}

// Catalog holds the loaded question banks.
type Catalog struct {
	defs map[string]*Definition
}

// LoadCatalog parses the embedded question banks.
func LoadCatalog() (*Catalog, error) {
	return loadCatalog(banks, "banks")
}

func loadCatalog(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list survey banks: %w", err)
	}

	c := &Catalog{defs: make(map[string]*Definition)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := c.defs[def.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate survey id %q", e.Name(), def.ID)
		}
		c.defs[def.ID] = &def
	}

	slog.Info("survey banks loaded", "surveys", len(c.defs))
	return c, nil
}

// Get returns a survey definition by id.
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// All returns every definition sorted by id.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
