// Package capsule groups saved items into capsule wardrobes by aesthetic
// similarity using k-means clustering.
package capsule

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/muse/internal/catalog"
)

// Config holds clustering parameters.
type Config struct {
	NumCapsules    int // Number of clusters to create (default: 3)
	MinCapsuleSize int // Smaller clusters become outliers
	MaxTags        int // Maximum tags used in vectors (default: 50)
}

// DefaultConfig returns the recommended configuration for a closet.
func DefaultConfig() Config {
	return Config{
		NumCapsules:    3,
		MinCapsuleSize: 2,
		MaxTags:        50,
	}
}

// Capsule is a group of items sharing aesthetics.
type Capsule struct {
	Name    string                 `json:"name"`
	Items   []catalog.ClothingItem `json:"items"`
	TopTags []string               `json:"topTags"`
	Total   float64                `json:"total"`
}

type itemObservation struct {
	item   *catalog.ClothingItem
	coords clusters.Coordinates
}

func (o itemObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o itemObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Build partitions items into capsules. Items without aesthetic tags, and
// members of clusters below MinCapsuleSize, are returned as outliers. When
// there are fewer tagged items than capsules every item is an outlier.
func Build(items []catalog.ClothingItem, cfg Config) ([]Capsule, []catalog.ClothingItem, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	def := DefaultConfig()
	if cfg.NumCapsules <= 0 {
		cfg.NumCapsules = def.NumCapsules
	}
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = def.MaxTags
	}

	var tagged []*catalog.ClothingItem
	var untagged []catalog.ClothingItem
	for i := range items {
		it := &items[i]
		if len(it.Aesthetic) > 0 {
			tagged = append(tagged, it)
		} else {
			untagged = append(untagged, *it)
		}
	}

	allOutliers := func() []catalog.ClothingItem {
		out := make([]catalog.ClothingItem, 0, len(items))
		for _, it := range tagged {
			out = append(out, *it)
		}
		return append(out, untagged...)
	}

	if len(tagged) < cfg.NumCapsules {
		return nil, allOutliers(), nil
	}

	vocabulary := buildVocabulary(tagged, cfg.MaxTags)

	var obs clusters.Observations
	for _, it := range tagged {
		obs = append(obs, itemObservation{item: it, coords: buildVector(it, vocabulary)})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumCapsules)
	if err != nil {
		return nil, allOutliers(), fmt.Errorf("partitioning closet: %w", err)
	}

	var capsules []Capsule
	var outliers []catalog.ClothingItem
	for _, cluster := range result {
		var members []catalog.ClothingItem
		for _, o := range cluster.Observations {
			if io, ok := o.(itemObservation); ok {
				members = append(members, *io.item)
			}
		}
		if len(members) == 0 {
			continue
		}
		if len(members) < cfg.MinCapsuleSize {
			outliers = append(outliers, members...)
			continue
		}

		slices.SortFunc(members, func(a, b catalog.ClothingItem) int {
			return strings.Compare(a.ID, b.ID)
		})
		topTags := extractTopTags(cluster.Center, vocabulary, 3)

		var total float64
		for _, m := range members {
			total += m.Price
		}
		capsules = append(capsules, Capsule{
			Name:    capsuleName(topTags),
			Items:   members,
			TopTags: topTags,
			Total:   total,
		})
	}
	outliers = append(outliers, untagged...)

	slices.SortFunc(capsules, func(a, b Capsule) int {
		if len(a.Items) != len(b.Items) {
			return len(b.Items) - len(a.Items)
		}
		return strings.Compare(a.Name, b.Name)
	})

	return capsules, outliers, nil
}

type tagCount struct {
	name  string
	count int
}

// buildVocabulary returns up to maxTags tags ordered by how many items carry
// them, ties alphabetical.
func buildVocabulary(items []*catalog.ClothingItem, maxTags int) []string {
	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range it.Aesthetic {
			counts[strings.ToLower(tag)]++
		}
	}

	tagCounts := make([]tagCount, 0, len(counts))
	for name, count := range counts {
		tagCounts = append(tagCounts, tagCount{name: name, count: count})
	}
	sort.Slice(tagCounts, func(i, j int) bool {
		if tagCounts[i].count != tagCounts[j].count {
			return tagCounts[i].count > tagCounts[j].count
		}
		return tagCounts[i].name < tagCounts[j].name
	})

	n := min(maxTags, len(tagCounts))
	vocabulary := make([]string, n)
	for i := 0; i < n; i++ {
		vocabulary[i] = tagCounts[i].name
	}
	return vocabulary
}

// buildVector is a 0/1 vector over vocabulary.
func buildVector(item *catalog.ClothingItem, vocabulary []string) clusters.Coordinates {
	index := make(map[string]int, len(vocabulary))
	for i, tag := range vocabulary {
		index[tag] = i
	}

	vector := make(clusters.Coordinates, len(vocabulary))
	for _, tag := range item.Aesthetic {
		if idx, ok := index[strings.ToLower(tag)]; ok {
			vector[idx] = 1
		}
	}
	return vector
}

// extractTopTags returns up to n tags with positive centroid weight.
func extractTopTags(centroid clusters.Coordinates, vocabulary []string, n int) []string {
	if len(centroid) == 0 || len(vocabulary) == 0 {
		return nil
	}

	type tagWeight struct {
		name   string
		weight float64
	}
	weights := make([]tagWeight, len(vocabulary))
	for i, name := range vocabulary {
		w := 0.0
		if i < len(centroid) {
			w = centroid[i]
		}
		weights[i] = tagWeight{name: name, weight: w}
	}
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	result := make([]string, 0, n)
	for i := 0; i < len(weights) && len(result) < n; i++ {
		if weights[i].weight > 0 {
			result = append(result, weights[i].name)
		}
	}
	return result
}

func capsuleName(topTags []string) string {
	if len(topTags) == 0 {
		return "Mixed"
	}
	return strings.Join(topTags, " & ")
}
