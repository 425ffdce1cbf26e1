package closet

import (
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/styledna"
)

// Storage key names. Each is prefixed with the client namespace.
const (
	KeyProfile = "muse-profile"
	KeySaved   = "muse-saved"
	KeyCart    = "muse-cart"
)

// MaxInteractions bounds the interaction log; the oldest entries go first.
const MaxInteractions = 100

// UserProfile is the single profile of a client installation.
type UserProfile struct {
	Name               string                 `json:"name"`
	Aesthetic          []string               `json:"aesthetic"`
	BudgetTier         int                    `json:"budgetTier"`
	Values             []string               `json:"values"`
	OnboardingComplete bool                   `json:"onboardingComplete"`
	Height             int                    `json:"height,omitempty"`
	PreferredFit       catalog.Fit            `json:"preferredFit,omitempty"`
	StyleDNA           *styledna.DNA          `json:"styleDNA,omitempty"`
	StyleInteractions  []styledna.Interaction `json:"styleInteractions,omitempty"`
}

// CartItem is a catalog item with a quantity of at least one.
type CartItem struct {
	catalog.ClothingItem
	Quantity int `json:"quantity"`
}

// CartSummary holds the totals derived from a cart snapshot.
type CartSummary struct {
	Subtotal  float64 `json:"subtotal"`
	ItemCount int     `json:"itemCount"`
}

// Totals sums price times quantity and the quantities of cart.
func Totals(cart []CartItem) CartSummary {
	var s CartSummary
	for _, it := range cart {
		s.Subtotal += it.Price * float64(it.Quantity)
		s.ItemCount += it.Quantity
	}
	return s
}

// OnboardingInput is what the onboarding quiz collects.
type OnboardingInput struct {
	Name       string   `json:"name"`
	Aesthetic  []string `json:"aesthetic"`
	BudgetTier *int     `json:"budgetTier"`
	Values     []string `json:"values"`
}

// DefaultBudgetTier is used when onboarding skips the budget step.
const DefaultBudgetTier = 1
