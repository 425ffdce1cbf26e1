// Package styledna folds a user's interaction log into a style summary.
package styledna

import (
	"sort"
	"time"
)

// InteractionType is the kind of action a user took on an item.
type InteractionType string

const (
	Save     InteractionType = "save"
	Purchase InteractionType = "purchase"
	View     InteractionType = "view"
	Skip     InteractionType = "skip"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case Save, Purchase, View, Skip:
		return true
	}
	return false
}

// Positive reports whether t counts toward the style summary.
func (t InteractionType) Positive() bool {
	return t == Save || t == Purchase
}

// Interaction is one entry of the interaction log. Entries are never mutated.
type Interaction struct {
	Type      InteractionType `json:"type"`
	ItemID    string          `json:"itemId"`
	Timestamp time.Time       `json:"timestamp"`
	Aesthetic []string        `json:"aesthetic"`
}

// DNA is the derived style summary. It is recomputed wholesale, never merged.
type DNA struct {
	Silhouette    []string  `json:"silhouette"`
	ColorPalette  []string  `json:"colorPalette"`
	Layering      int       `json:"layering"`
	Texture       []string  `json:"texture"`
	Patterns      []string  `json:"patterns"`
	TopAesthetics []string  `json:"topAesthetics,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

const (
	// MaxLayering caps the layering score.
	MaxLayering = 100
	// LayeringPerPositive is added per save or purchase.
	LayeringPerPositive = 10
	// DefaultLayering is shown for profiles that have no summary yet.
	DefaultLayering = 65

	topAestheticsLimit = 3
)

func defaultSilhouette() []string { return []string{"oversized", "relaxed"} }
func defaultTexture() []string    { return []string{"linen", "cashmere", "denim"} }
func defaultPatterns() []string   { return []string{"solid", "minimal-stripe"} }

// Calculate recomputes the summary from the whole log.
//
// Only Layering and TopAesthetics depend on the input; the trait lists are
// fixed until trait tagging exists in the catalog.
func Calculate(interactions []Interaction, now time.Time) DNA {
	positives := 0
	counts := make(map[string]int)
	for _, in := range interactions {
		if !in.Type.Positive() {
			continue
		}
		positives++
		for _, a := range in.Aesthetic {
			counts[a]++
		}
	}

	return DNA{
		Silhouette:    defaultSilhouette(),
		ColorPalette:  []string{"neutrals", "earth-tones", "muted"},
		Layering:      min(MaxLayering, positives*LayeringPerPositive),
		Texture:       defaultTexture(),
		Patterns:      defaultPatterns(),
		TopAesthetics: topAesthetics(counts, topAestheticsLimit),
		LastUpdated:   now.UTC(),
	}
}

// Default is the summary displayed when a profile has none.
func Default(now time.Time) DNA {
	return DNA{
		Silhouette:   defaultSilhouette(),
		ColorPalette: []string{"neutrals", "earth-tones"},
		Layering:     DefaultLayering,
		Texture:      defaultTexture(),
		Patterns:     defaultPatterns(),
		LastUpdated:  now.UTC(),
	}
}

// topAesthetics returns up to n tags by descending count, ties alphabetical.
func topAesthetics(counts map[string]int, n int) []string {
	if len(counts) == 0 {
		return nil
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}
