package catalog

import (
	"slices"
	"strings"
)

// CategoryAll disables the category filter of Search.
const CategoryAll = "all"

// Search returns items, in catalog order, whose name, brand or one of whose
// aesthetic tags contains query, ignoring case, and whose category equals
// category. An empty query matches every item; an empty category or
// CategoryAll matches every category.
func (c *Catalog) Search(query, category string) []ClothingItem {
	return Filter(c.items, query, category)
}

// Filter applies the Search rules to items.
func Filter(items []ClothingItem, query, category string) []ClothingItem {
	q := strings.ToLower(strings.TrimSpace(query))
	cat := strings.TrimSpace(category)
	if strings.EqualFold(cat, CategoryAll) {
		cat = ""
	}

	out := []ClothingItem{}
	for _, item := range items {
		if cat != "" && !strings.EqualFold(item.Category, cat) {
			continue
		}
		if q != "" && !matchesQuery(item, q) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesQuery(item ClothingItem, q string) bool {
	if strings.Contains(strings.ToLower(item.Name), q) || strings.Contains(strings.ToLower(item.Brand), q) {
		return true
	}
	return slices.ContainsFunc(item.Aesthetic, func(a string) bool {
		return strings.Contains(strings.ToLower(a), q)
	})
}

// ValidTier reports whether tier is one of Tiers.
func ValidTier(tier string) bool {
	return slices.Contains(Tiers, tier)
}

// ReplayOutfit swaps every item for its alternative at tier, keeping the
// item itself when it has none, and returns the swapped outfit with its
// total price.
func (c *Catalog) ReplayOutfit(items []ClothingItem, tier string) ([]ClothingItem, float64) {
	out := make([]ClothingItem, 0, len(items))
	var total float64
	for _, item := range items {
		if alt, ok := c.Alternative(item, tier); ok {
			item = alt
		}
		out = append(out, item)
		total += item.Price
	}
	return out, total
}
