package catalog

// Fit is a preferred garment fit.
type Fit string

const (
	FitOversized Fit = "oversized"
	FitRelaxed   Fit = "relaxed"
	FitFitted    Fit = "fitted"
)

// Fits lists every fit in display order.
var Fits = []Fit{FitOversized, FitRelaxed, FitFitted}

// Valid reports whether f is one of the known fits.
func (f Fit) Valid() bool {
	switch f {
	case FitOversized, FitRelaxed, FitFitted:
		return true
	}
	return false
}

// FitInfo describes how an item wears for each fit preference.
type FitInfo struct {
	Oversized string `json:"oversized" yaml:"oversized"`
	Relaxed   string `json:"relaxed" yaml:"relaxed"`
	Fitted    string `json:"fitted" yaml:"fitted"`
}

// For returns the description for fit f.
func (fi FitInfo) For(f Fit) string {
	switch f {
	case FitOversized:
		return fi.Oversized
	case FitFitted:
		return fi.Fitted
	default:
		return fi.Relaxed
	}
}

// BudgetAlternatives maps a budget tier to the id of a comparable item.
// A nil entry means there is no alternative at that tier.
type BudgetAlternatives struct {
	Thrift      *string `json:"thrift" yaml:"thrift"`
	Affordable  *string `json:"affordable" yaml:"affordable"`
	MidRange    *string `json:"midRange" yaml:"mid_range"`
	HighFashion *string `json:"highFashion" yaml:"high_fashion"`
}

// ClothingItem is a catalog entry.
type ClothingItem struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Brand         string   `json:"brand" yaml:"brand"`
	Price         float64  `json:"price" yaml:"price"`
	Image         string   `json:"image" yaml:"image"`
	Aesthetic     []string `json:"aesthetic" yaml:"aesthetic"`
	Category      string   `json:"category" yaml:"category"`
	IsLocal       bool     `json:"isLocal,omitempty" yaml:"is_local"`
	IsSustainable bool     `json:"isSustainable,omitempty" yaml:"is_sustainable"`
	IsResale      bool     `json:"isResale,omitempty" yaml:"is_resale"`

	Description           string              `json:"description,omitempty" yaml:"description"`
	StylingTips           []string            `json:"stylingTips,omitempty" yaml:"styling_tips"`
	PairsWellWith         []string            `json:"pairsWellWith,omitempty" yaml:"pairs_well_with"`
	RecommendationReasons []string            `json:"recommendationReasons,omitempty" yaml:"recommendation_reasons"`
	NotRecommendedReasons []string            `json:"notRecommendedReasons,omitempty" yaml:"not_recommended_reasons"`
	FitInfo               *FitInfo            `json:"fitInfo,omitempty" yaml:"fit_info"`
	SizeGuide             map[string]string   `json:"sizeGuide,omitempty" yaml:"size_guide"`
	BudgetAlternatives    *BudgetAlternatives `json:"budgetAlternatives,omitempty" yaml:"budget_alternatives"`
}

// HasAesthetic reports whether the item is tagged with aesthetic id.
func (c ClothingItem) HasAesthetic(id string) bool {
	for _, a := range c.Aesthetic {
		if a == id {
			return true
		}
	}
	return false
}

// Option is a selectable id/label pair (aesthetics, values).
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}
