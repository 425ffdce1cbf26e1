// Package catalog holds the read-only product catalog and the reference
// lists (aesthetics, budget tiers, values) used during onboarding.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Budget tier names used as keys of BudgetAlternatives.
const (
	TierThrift      = "thrift"
	TierAffordable  = "affordable"
	TierMidRange    = "midRange"
	TierHighFashion = "highFashion"
)

// Tiers lists budget tier names in the same order as the budget labels.
var Tiers = []string{TierThrift, TierAffordable, TierMidRange, TierHighFashion}

// ValueNone is the exclusive "none of these" value.
const ValueNone = "none"

// Catalog is an immutable, indexed set of items.
type Catalog struct {
	aesthetics   []Option
	budgetLabels []string
	values       []Option
	items        []ClothingItem
	byID         map[string]int
}

type catalogFile struct {
	Aesthetics   []Option       `yaml:"aesthetics"`
	BudgetLabels []string       `yaml:"budget_labels"`
	Values       []Option       `yaml:"values"`
	Items        []ClothingItem `yaml:"items"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		aesthetics:   f.Aesthetics,
		budgetLabels: f.BudgetLabels,
		values:       f.Values,
		items:        f.Items,
		byID:         make(map[string]int, len(f.Items)),
	}

	var errs []error
	for i, item := range f.Items {
		if item.ID == "" {
			errs = append(errs, fmt.Errorf("item %d: missing id", i))
			continue
		}
		if _, dup := c.byID[item.ID]; dup {
			errs = append(errs, fmt.Errorf("item %q: duplicate id", item.ID))
			continue
		}
		if item.Price < 0 {
			errs = append(errs, fmt.Errorf("item %q: negative price", item.ID))
		}
		c.byID[item.ID] = i
	}
	if len(c.budgetLabels) != len(Tiers) {
		errs = append(errs, fmt.Errorf("budget_labels: want %d labels, got %d", len(Tiers), len(c.budgetLabels)))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return c, nil
}

// Items returns all items in catalog order.
func (c *Catalog) Items() []ClothingItem {
	return append([]ClothingItem(nil), c.items...)
}

// Get returns the item with the given id.
func (c *Catalog) Get(id string) (ClothingItem, bool) {
	i, ok := c.byID[id]
	if !ok {
		return ClothingItem{}, false
	}
	return c.items[i], true
}

// Feed returns items tagged with aesthetic, or every item when aesthetic
// is empty.
func (c *Catalog) Feed(aesthetic string) []ClothingItem {
	if aesthetic == "" {
		return c.Items()
	}
	out := []ClothingItem{}
	for _, item := range c.items {
		if item.HasAesthetic(aesthetic) {
			out = append(out, item)
		}
	}
	return out
}

// ForAesthetics returns items tagged with any of ids, in catalog order.
// No ids selects every item.
func (c *Catalog) ForAesthetics(ids []string) []ClothingItem {
	if len(ids) == 0 {
		return c.Items()
	}
	out := []ClothingItem{}
	for _, item := range c.items {
		for _, id := range ids {
			if item.HasAesthetic(id) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// PairsWellWith resolves the item's pairing ids. Unknown ids are skipped.
func (c *Catalog) PairsWellWith(item ClothingItem) []ClothingItem {
	out := []ClothingItem{}
	for _, id := range item.PairsWellWith {
		if p, ok := c.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Alternative resolves the budget alternative of item at tier.
func (c *Catalog) Alternative(item ClothingItem, tier string) (ClothingItem, bool) {
	if item.BudgetAlternatives == nil {
		return ClothingItem{}, false
	}
	var id *string
	switch tier {
	case TierThrift:
		id = item.BudgetAlternatives.Thrift
	case TierAffordable:
		id = item.BudgetAlternatives.Affordable
	case TierMidRange:
		id = item.BudgetAlternatives.MidRange
	case TierHighFashion:
		id = item.BudgetAlternatives.HighFashion
	}
	if id == nil {
		return ClothingItem{}, false
	}
	return c.Get(*id)
}

// Aesthetics returns the selectable aesthetics.
func (c *Catalog) Aesthetics() []Option {
	return append([]Option(nil), c.aesthetics...)
}

// AestheticLabel returns the display label of an aesthetic, or the id
// itself when unknown.
func (c *Catalog) AestheticLabel(id string) string {
	for _, a := range c.aesthetics {
		if a.ID == id {
			return a.Label
		}
	}
	return id
}

// Values returns the selectable shopping values.
func (c *Catalog) Values() []Option {
	return append([]Option(nil), c.values...)
}

// BudgetLabels returns the ordered budget tier labels.
func (c *Catalog) BudgetLabels() []string {
	return append([]string(nil), c.budgetLabels...)
}

// BudgetLabel returns the label of a budget tier index.
func (c *Catalog) BudgetLabel(tier int) (string, bool) {
	if tier < 0 || tier >= len(c.budgetLabels) {
		return "", false
	}
	return c.budgetLabels[tier], true
}
