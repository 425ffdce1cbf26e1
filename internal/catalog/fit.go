package catalog

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultHeightCM is assumed when the profile has no height.
	DefaultHeightCM = 170
	// DefaultFit is assumed when the profile has no fit preference.
	DefaultFit = FitRelaxed
	// DefaultSize is recommended when no size guide range matches.
	DefaultSize = "M"
)

// DefaultFitInfo describes fits for items that carry no fit info.
var DefaultFitInfo = FitInfo{
	Oversized: "Relaxed, drapey silhouette",
	Relaxed:   "Comfortable with room to move",
	Fitted:    "Close to the body, more structured",
}

// FitDescriptions returns the item's fit info, or DefaultFitInfo.
func FitDescriptions(item ClothingItem) FitInfo {
	if item.FitInfo == nil {
		return DefaultFitInfo
	}
	return *item.FitInfo
}

// heightRange is a parsed size guide key: "160-170" (inclusive) or "180+".
type heightRange struct {
	key     string
	min     int
	max     int
	openEnd bool
}

func (r heightRange) contains(h int) bool {
	if r.openEnd {
		return h >= r.min
	}
	return h >= r.min && h <= r.max
}

func parseHeightRange(key string) (heightRange, bool) {
	k := strings.TrimSpace(key)
	if strings.HasSuffix(k, "+") {
		n, err := strconv.Atoi(strings.TrimSuffix(k, "+"))
		if err != nil {
			return heightRange{}, false
		}
		return heightRange{key: key, min: n, openEnd: true}, true
	}

	lo, hi, ok := strings.Cut(k, "-")
	if !ok {
		return heightRange{}, false
	}
	minH, err1 := strconv.Atoi(strings.TrimSpace(lo))
	maxH, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || maxH < minH {
		return heightRange{}, false
	}
	return heightRange{key: key, min: minH, max: maxH}, true
}

// RecommendSize picks a size from the item's size guide for a height in cm.
// A non-positive height uses DefaultHeightCM. Ranges are checked from the
// lowest minimum upward, so on a shared boundary the lower range wins.
// Unparseable keys are ignored; no match yields DefaultSize.
func RecommendSize(item ClothingItem, heightCM int) string {
	if heightCM <= 0 {
		heightCM = DefaultHeightCM
	}
	if len(item.SizeGuide) == 0 {
		return DefaultSize
	}

	ranges := make([]heightRange, 0, len(item.SizeGuide))
	for key := range item.SizeGuide {
		if r, ok := parseHeightRange(key); ok {
			ranges = append(ranges, r)
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].min != ranges[j].min {
			return ranges[i].min < ranges[j].min
		}
		return ranges[i].key < ranges[j].key
	})

	for _, r := range ranges {
		if r.contains(heightCM) {
			return item.SizeGuide[r.key]
		}
	}
	return DefaultSize
}
