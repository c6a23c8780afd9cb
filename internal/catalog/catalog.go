package catalog

import (
	"errors"
	"sort"
	"strings"

	"github.com/smallbiznis/lubeqc/internal/config"
)

type Family string

const (
	FamilyGrease Family = "grease"
	FamilyOil    Family = "oil"
)

type Unit string

const (
	UnitGram  Unit = "g"
	UnitLiter Unit = "L"
)

var ErrInvalidFamily = errors.New("invalid_family")

// ParseFamily accepts "grease"/"oil" in any case.
func ParseFamily(raw string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(FamilyGrease):
		return FamilyGrease, nil
	case string(FamilyOil):
		return FamilyOil, nil
	default:
		return "", ErrInvalidFamily
	}
}

// Unit is the measuring unit of the family.
func (f Family) Unit() Unit {
	if f == FamilyOil {
		return UnitLiter
	}
	return UnitGram
}

// Title is the display name used in report headings and file names.
func (f Family) Title() string {
	if f == FamilyOil {
		return "Oil"
	}
	return "Grease"
}

// ParseUnit normalizes a unit string. Anything other than liters is grams.
func ParseUnit(raw string) Unit {
	if strings.EqualFold(strings.TrimSpace(raw), string(UnitLiter)) {
		return UnitLiter
	}
	return UnitGram
}

type Lubricant struct {
	Name         string  `json:"name"`
	Family       Family  `json:"family"`
	Unit         Unit    `json:"unit"`
	AnnualTarget float64 `json:"annual_target"`
}

// Catalog is an immutable snapshot of the configured lubricants.
type Catalog struct {
	lubricants []Lubricant
	byName     map[string]Lubricant
}

func New(cfg config.LubricantConfig) *Catalog {
	c := &Catalog{byName: make(map[string]Lubricant, len(cfg.Grease)+len(cfg.Oil))}
	add := func(entries []config.LubricantEntry, family Family) {
		for _, entry := range entries {
			name := strings.TrimSpace(entry.Name)
			if name == "" {
				continue
			}
			lub := Lubricant{
				Name:         name,
				Family:       family,
				Unit:         family.Unit(),
				AnnualTarget: entry.AnnualTarget,
			}
			c.lubricants = append(c.lubricants, lub)
			c.byName[name] = lub
		}
	}
	add(cfg.Grease, FamilyGrease)
	add(cfg.Oil, FamilyOil)
	return c
}

func (c *Catalog) Lookup(name string) (Lubricant, bool) {
	lub, ok := c.byName[strings.TrimSpace(name)]
	return lub, ok
}

// AnnualTarget reports the configured target for name.
func (c *Catalog) AnnualTarget(name string) (float64, bool) {
	lub, ok := c.Lookup(name)
	if !ok {
		return 0, false
	}
	return lub.AnnualTarget, true
}

// Names lists the lubricants of a family in catalog order.
func (c *Catalog) Names(family Family) []string {
	out := make([]string, 0, len(c.lubricants))
	for _, lub := range c.lubricants {
		if lub.Family == family {
			out = append(out, lub.Name)
		}
	}
	return out
}

func (c *Catalog) Contains(family Family, name string) bool {
	lub, ok := c.Lookup(name)
	return ok && lub.Family == family
}

func (c *Catalog) All() []Lubricant {
	return append([]Lubricant(nil), c.lubricants...)
}

// Targets returns name → annual target, sorted keys available through SortedNames.
func (c *Catalog) Targets() map[string]float64 {
	out := make(map[string]float64, len(c.lubricants))
	for _, lub := range c.lubricants {
		out[lub.Name] = lub.AnnualTarget
	}
	return out
}

func (c *Catalog) SortedNames() []string {
	out := make([]string, 0, len(c.lubricants))
	for _, lub := range c.lubricants {
		out = append(out, lub.Name)
	}
	sort.Strings(out)
	return out
}
