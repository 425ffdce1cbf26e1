package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/muse/internal/capsule"
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/closet"
	"github.com/justestif/muse/internal/styledna"
)

type optionsResponse struct {
	Aesthetics   []catalog.Option `json:"aesthetics"`
	BudgetLabels []string         `json:"budgetLabels"`
	Values       []catalog.Option `json:"values"`
	Fits         []catalog.Fit    `json:"fits"`
}

type itemsResponse struct {
	Items []catalog.ClothingItem `json:"items"`
}

type itemDetail struct {
	Item            catalog.ClothingItem            `json:"item"`
	PairsWellWith   []catalog.ClothingItem          `json:"pairsWellWith"`
	Alternatives    map[string]catalog.ClothingItem `json:"budgetAlternatives,omitempty"`
	RecommendedSize string                          `json:"recommendedSize"`
	Height          int                             `json:"height"`
	Fit             catalog.Fit                     `json:"fit"`
	FitDescription  string                          `json:"fitDescription"`
	FitInfo         catalog.FitInfo                 `json:"fitInfo"`
	Saved           bool                            `json:"saved"`
}

type savedResponse struct {
	Items []catalog.ClothingItem `json:"items"`
	Total float64                `json:"total"`
	Tier  string                 `json:"tier,omitempty"`
}

type toggleResponse struct {
	Saved bool `json:"saved"`
}

type capsulesResponse struct {
	Capsules []capsule.Capsule     `json:"capsules"`
	Outliers []catalog.ClothingItem `json:"outliers"`
}

type cartResponse struct {
	Items []closet.CartItem `json:"items"`
	closet.CartSummary
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type fitRequest struct {
	Height int         `json:"height"`
	Fit    catalog.Fit `json:"fit"`
}

type interactionRequest struct {
	Type      styledna.InteractionType `json:"type"`
	ItemID    string                   `json:"itemId"`
	Aesthetic []string                 `json:"aesthetic"`
}

type interactionResponse struct {
	Tracked  bool          `json:"tracked"`
	StyleDNA *styledna.DNA `json:"styleDNA,omitempty"`
}

func (h *Handlers) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msgInternalError)
}

// itemParam resolves the {id} URL parameter against the catalog, writing
// a 404 when it is unknown.
func (h *Handlers) itemParam(w http.ResponseWriter, r *http.Request) (catalog.ClothingItem, bool) {
	item, ok := h.catalog.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, msgItemNotFound)
	}
	return item, ok
}

// Options lists onboarding choices (GET /api/options).
func (h *Handlers) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Aesthetics:   h.catalog.Aesthetics(),
		BudgetLabels: h.catalog.BudgetLabels(),
		Values:       h.catalog.Values(),
		Fits:         catalog.Fits,
	})
}

// ListCatalog returns the feed, narrowed by aesthetic, a free-text query
// over name, brand and tags, and a category
// (GET /api/catalog?aesthetic=&q=&category=).
func (h *Handlers) ListCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := catalog.Filter(h.catalog.Feed(q.Get("aesthetic")), q.Get("q"), q.Get("category"))
	writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}

// GetItem returns an item with pairings and fit guidance for the client
// profile (GET /api/catalog/{id}).
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemParam(w, r)
	if !ok {
		return
	}

	c := h.closetFor(r)
	profile, err := c.Profile(r.Context())
	if err != nil {
		h.internalError(w, "loading profile failed", err)
		return
	}
	saved, err := c.IsItemSaved(r.Context(), item.ID)
	if err != nil {
		h.internalError(w, "loading saved items failed", err)
		return
	}

	height, fit := catalog.DefaultHeightCM, catalog.DefaultFit
	if profile != nil {
		if profile.Height > 0 {
			height = profile.Height
		}
		if profile.PreferredFit.Valid() {
			fit = profile.PreferredFit
		}
	}

	fitInfo := catalog.FitDescriptions(item)
	detail := itemDetail{
		Item:            item,
		PairsWellWith:   h.catalog.PairsWellWith(item),
		RecommendedSize: catalog.RecommendSize(item, height),
		Height:          height,
		Fit:             fit,
		FitDescription:  fitInfo.For(fit),
		FitInfo:         fitInfo,
		Saved:           saved,
	}
	for _, tier := range catalog.Tiers {
		if alt, ok := h.catalog.Alternative(item, tier); ok {
			if detail.Alternatives == nil {
				detail.Alternatives = make(map[string]catalog.ClothingItem)
			}
			detail.Alternatives[tier] = alt
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

// GetProfile returns the profile (GET /api/profile).
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.closetFor(r).Profile(r.Context())
	if err != nil {
		h.internalError(w, "loading profile failed", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PutProfile overwrites the profile (PUT /api/profile).
func (h *Handlers) PutProfile(w http.ResponseWriter, r *http.Request) {
	var p closet.UserProfile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := h.closetFor(r).UpdateProfile(r.Context(), p); err != nil {
		h.internalError(w, "updating profile failed", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProfile resets the profile (DELETE /api/profile).
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.closetFor(r).ResetProfile(r.Context()); err != nil {
		h.internalError(w, "resetting profile failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteOnboarding stores the onboarding answers (POST /api/profile/onboarding).
func (h *Handlers) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var in closet.OnboardingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	p, err := h.closetFor(r).CompleteOnboarding(r.Context(), in)
	switch {
	case errors.Is(err, closet.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.internalError(w, "completing onboarding failed", err)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// UpdateFit sets height and preferred fit (PUT /api/profile/fit).
func (h *Handlers) UpdateFit(w http.ResponseWriter, r *http.Request) {
	var req fitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	p, err := h.closetFor(r).UpdateFitPreferences(r.Context(), req.Height, req.Fit)
	switch {
	case errors.Is(err, closet.ErrInvalidFit):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.internalError(w, "updating fit preferences failed", err)
	case p == nil:
		writeError(w, http.StatusNotFound, msgNoProfile)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// ListSaved returns saved items, optionally by category, and their total.
// With a tier, each item is swapped for its alternative at that budget tier
// (GET /api/saved?category=&tier=).
func (h *Handlers) ListSaved(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	if tier != "" && !catalog.ValidTier(tier) {
		writeError(w, http.StatusBadRequest, msgUnknownTier)
		return
	}

	c := h.closetFor(r)
	items, err := c.SavedItemsByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.internalError(w, "loading saved items failed", err)
		return
	}

	if tier != "" {
		replayed, total := h.catalog.ReplayOutfit(items, tier)
		writeJSON(w, http.StatusOK, savedResponse{Items: replayed, Total: total, Tier: tier})
		return
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	total, err := c.OutfitTotal(r.Context(), ids)
	if err != nil {
		h.internalError(w, "computing outfit total failed", err)
		return
	}
	writeJSON(w, http.StatusOK, savedResponse{Items: items, Total: total})
}

// ToggleSaved saves or unsaves an item (POST /api/saved/{id}/toggle).
func (h *Handlers) ToggleSaved(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemParam(w, r)
	if !ok {
		return
	}
	saved, err := h.closetFor(r).ToggleSaveTracked(r.Context(), item)
	if err != nil {
		h.internalError(w, "toggling saved item failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Saved: saved})
}

// Capsules groups saved items into capsule wardrobes (GET /api/saved/capsules).
func (h *Handlers) Capsules(w http.ResponseWriter, r *http.Request) {
	items, err := h.closetFor(r).SavedItems(r.Context())
	if err != nil {
		h.internalError(w, "loading saved items failed", err)
		return
	}
	capsules, outliers, err := capsule.Build(items, h.capsules)
	if err != nil {
		h.internalError(w, "building capsules failed", err)
		return
	}
	if capsules == nil {
		capsules = []capsule.Capsule{}
	}
	if outliers == nil {
		outliers = []catalog.ClothingItem{}
	}
	writeJSON(w, http.StatusOK, capsulesResponse{Capsules: capsules, Outliers: outliers})
}

func writeCart(w http.ResponseWriter, cart []closet.CartItem) {
	if cart == nil {
		cart = []closet.CartItem{}
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: cart, CartSummary: closet.Totals(cart)})
}

// GetCart returns the cart with totals (GET /api/cart).
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.closetFor(r).Cart(r.Context())
	if err != nil {
		h.internalError(w, "loading cart failed", err)
		return
	}
	writeCart(w, cart)
}

// AddToCart adds one of an item (POST /api/cart/{id}).
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemParam(w, r)
	if !ok {
		return
	}
	cart, err := h.closetFor(r).AddToCartTracked(r.Context(), item)
	if err != nil {
		h.internalError(w, "adding to cart failed", err)
		return
	}
	writeCart(w, cart)
}

// UpdateCartQuantity sets an item's quantity (PUT /api/cart/{id}).
func (h *Handlers) UpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	cart, err := h.closetFor(r).UpdateCartQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.internalError(w, "updating cart failed", err)
		return
	}
	writeCart(w, cart)
}

// RemoveFromCart deletes an item from the cart (DELETE /api/cart/{id}).
func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.closetFor(r).RemoveFromCart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, "removing from cart failed", err)
		return
	}
	writeCart(w, cart)
}

// ClearCart empties the cart (DELETE /api/cart).
func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.closetFor(r).ClearCart(r.Context()); err != nil {
		h.internalError(w, "clearing cart failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrackInteraction records a style interaction (POST /api/interactions).
// Aesthetic tags default to the catalog item's when omitted.
func (h *Handlers) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if len(req.Aesthetic) == 0 {
		if item, ok := h.catalog.Get(req.ItemID); ok {
			req.Aesthetic = item.Aesthetic
		}
	}

	p, err := h.closetFor(r).TrackStyleInteraction(r.Context(), req.Type, req.ItemID, req.Aesthetic)
	switch {
	case errors.Is(err, closet.ErrInvalidInteraction):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.internalError(w, "tracking interaction failed", err)
	case p == nil:
		writeJSON(w, http.StatusOK, interactionResponse{})
	default:
		writeJSON(w, http.StatusOK, interactionResponse{Tracked: true, StyleDNA: p.StyleDNA})
	}
}

// StyleDNA returns the Style DNA summary (GET /api/style-dna).
func (h *Handlers) StyleDNA(w http.ResponseWriter, r *http.Request) {
	dna, err := h.closetFor(r).StyleDNA(r.Context())
	if err != nil {
		h.internalError(w, "loading style dna failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dna)
}
