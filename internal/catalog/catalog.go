// Package catalog holds the static pass offering per attendee category and
// the country/state lookup used by the registration form.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"smec/conclave/internal/model"
)

//go:embed catalog.yaml
var defaultData []byte

type Pass struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       int      `yaml:"price" json:"price"`
	Description string   `yaml:"description" json:"description"`
	Features    []string `yaml:"features" json:"features"`
	Recommended bool     `yaml:"recommended" json:"recommended,omitempty"`
}

type Catalog struct {
	passes  map[model.Category][]Pass
	regions map[string][]string
}

type file struct {
	Passes  map[string][]Pass   `yaml:"passes"`
	Regions map[string][]string `yaml:"regions"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := &Catalog{
		passes:  make(map[model.Category][]Pass, len(f.Passes)),
		regions: f.Regions,
	}
	for key, passes := range f.Passes {
		category, err := model.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		if len(passes) == 0 {
			return nil, fmt.Errorf("category %s has no passes", category)
		}
		seen := make(map[string]bool, len(passes))
		recommended := 0
		for _, p := range passes {
			if p.ID == "" {
				return nil, fmt.Errorf("category %s: pass without id", category)
			}
			if seen[p.ID] {
				return nil, fmt.Errorf("category %s: duplicate pass %q", category, p.ID)
			}
			seen[p.ID] = true
			if p.Recommended {
				recommended++
			}
		}
		if recommended > 1 {
			return nil, fmt.Errorf("category %s: %d recommended passes, at most one allowed", category, recommended)
		}
		c.passes[category] = passes
	}
	if len(c.passes) == 0 {
		return nil, errors.New("catalog has no categories")
	}
	return c, nil
}

func (c *Catalog) Categories() []model.Category {
	out := make([]model.Category, 0, len(c.passes))
	for category := range c.passes {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Passes returns the options for a category in catalog order.
func (c *Catalog) Passes(category model.Category) []Pass {
	return append([]Pass(nil), c.passes[category]...)
}

// Display returns the options with the recommended one first; the rest keep
// catalog order.
func (c *Catalog) Display(category model.Category) []Pass {
	passes := c.Passes(category)
	sort.SliceStable(passes, func(i, j int) bool {
		return passes[i].Recommended && !passes[j].Recommended
	})
	return passes
}

func (c *Catalog) Lookup(category model.Category, passID string) (Pass, bool) {
	for _, p := range c.passes[category] {
		if p.ID == passID {
			return p, true
		}
	}
	return Pass{}, false
}

func (c *Catalog) Countries() []string {
	out := make([]string, 0, len(c.regions))
	for country := range c.regions {
		out = append(out, country)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) States(country string) []string {
	return append([]string(nil), c.regions[country]...)
}
