// Package closet holds per-client state: the profile, saved items and cart.
//
// Every mutation reads the current value from storage, applies the change,
// writes it back and republishes it on the Hub so observing Hooks update
// without another read.
package closet

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/logger"
	"github.com/justestif/muse/internal/storage"
	"github.com/justestif/muse/internal/styledna"
)

var (
	// ErrInvalidProfile is returned for onboarding input outside the allowed range.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrInvalidFit is returned for unknown fits or non-positive heights.
	ErrInvalidFit = errors.New("invalid fit preferences")
	// ErrInvalidInteraction is returned for unknown interaction types.
	ErrInvalidInteraction = errors.New("invalid interaction")
)

// lockStripes is the number of mutexes namespaces are hashed onto.
const lockStripes = 64

// Store hands out per-namespace closets that share one storage backend and
// one Hub.
type Store struct {
	storage storage.Storage
	hub     *Hub
	log     *logger.Logger
	now     func() time.Time

	// Namespaces sharing a stripe serialise against each other.
	locks [lockStripes]sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for interaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates a store. A nil backend means no storage medium: reads
// return defaults and writes are dropped, but values are still published.
func NewStore(backend storage.Storage, hub *Hub, opts ...Option) *Store {
	if hub == nil {
		hub = NewHub()
	}
	s := &Store{
		storage: backend,
		hub:     hub,
		log:     logger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// For returns the closet of one client namespace. An empty namespace uses
// the bare key names.
func (s *Store) For(namespace string) *Closet {
	return &Closet{store: s, namespace: namespace, mu: s.lockFor(namespace)}
}

func (s *Store) lockFor(namespace string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	return &s.locks[h.Sum32()%lockStripes]
}

// Closet is the state of one client.
type Closet struct {
	store     *Store
	namespace string
	mu        *sync.Mutex
}

// Key returns the namespaced storage key for name.
func (c *Closet) Key(name string) string {
	if c.namespace == "" {
		return name
	}
	return c.namespace + ":" + name
}

func write[T any](ctx context.Context, c *Closet, name string, v T) error {
	key := c.Key(name)
	if err := storage.Write(ctx, c.store.storage, key, v); err != nil {
		return err
	}
	c.store.hub.Publish(key, v)
	return nil
}

// ProfileHook observes the profile.
func (c *Closet) ProfileHook() *Hook[*UserProfile] {
	return NewHook[*UserProfile](c.store.hub, c.store.storage, c.Key(KeyProfile), nil)
}

// SavedHook observes the saved items.
func (c *Closet) SavedHook() *Hook[[]catalog.ClothingItem] {
	return NewHook(c.store.hub, c.store.storage, c.Key(KeySaved), []catalog.ClothingItem{})
}

// CartHook observes the cart.
func (c *Closet) CartHook() *Hook[[]CartItem] {
	return NewHook(c.store.hub, c.store.storage, c.Key(KeyCart), []CartItem{})
}

// Watch calls fn with the key name and new value whenever any of the three
// keys of this closet is published.
func (c *Closet) Watch(fn func(name string, value any)) (cancel func()) {
	names := []string{KeyProfile, KeySaved, KeyCart}
	cancels := make([]func(), 0, len(names))
	for _, name := range names {
		cancels = append(cancels, c.store.hub.Subscribe(c.Key(name), func(v any) {
			fn(name, v)
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Profile returns the stored profile, or nil before onboarding.
func (c *Closet) Profile(ctx context.Context) (*UserProfile, error) {
	return storage.Read[*UserProfile](ctx, c.store.storage, c.Key(KeyProfile), nil)
}

// UpdateProfile overwrites the profile.
func (c *Closet) UpdateProfile(ctx context.Context, p UserProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return write(ctx, c, KeyProfile, &p)
}

// ResetProfile deletes the profile.
func (c *Closet) ResetProfile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key(KeyProfile)
	if err := storage.Remove(ctx, c.store.storage, key); err != nil {
		return err
	}
	c.store.hub.Publish(key, (*UserProfile)(nil))
	return nil
}

// CompleteOnboarding replaces the profile with the onboarding answers.
// Aesthetics are deduplicated, a missing budget tier becomes
// DefaultBudgetTier and the "none" value excludes every other value.
func (c *Closet) CompleteOnboarding(ctx context.Context, in OnboardingInput) (*UserProfile, error) {
	tier := DefaultBudgetTier
	if in.BudgetTier != nil {
		tier = *in.BudgetTier
	}
	if tier < 0 || tier >= len(catalog.Tiers) {
		return nil, fmt.Errorf("%w: budget tier %d out of range", ErrInvalidProfile, tier)
	}

	p := &UserProfile{
		Name:               strings.TrimSpace(in.Name),
		Aesthetic:          dedupe(in.Aesthetic),
		BudgetTier:         tier,
		Values:             normalizeValues(in.Values),
		OnboardingComplete: true,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := write(ctx, c, KeyProfile, p); err != nil {
		return nil, err
	}
	return p, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func normalizeValues(in []string) []string {
	vals := dedupe(in)
	rest := slices.DeleteFunc(slices.Clone(vals), func(v string) bool { return v == catalog.ValueNone })
	if len(rest) == 0 {
		return []string{catalog.ValueNone}
	}
	return rest
}

// UpdateFitPreferences sets height and preferred fit. It returns nil
// without error when there is no profile yet.
func (c *Closet) UpdateFitPreferences(ctx context.Context, heightCM int, fit catalog.Fit) (*UserProfile, error) {
	if heightCM <= 0 || !fit.Valid() {
		return nil, fmt.Errorf("%w: height %d, fit %q", ErrInvalidFit, heightCM, fit)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.Profile(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	p.Height = heightCM
	p.PreferredFit = fit
	if err := write(ctx, c, KeyProfile, p); err != nil {
		return nil, err
	}
	return p, nil
}

// TrackStyleInteraction appends an entry to the profile's interaction log,
// keeping the newest MaxInteractions. Saves and purchases recompute the
// Style DNA from the whole retained log. Without a profile it does nothing
// and returns nil.
func (c *Closet) TrackStyleInteraction(ctx context.Context, t styledna.InteractionType, itemID string, aesthetic []string) (*UserProfile, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidInteraction, t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.Profile(ctx)
	if err != nil || p == nil {
		return nil, err
	}

	now := c.store.now().UTC()
	log := append(p.StyleInteractions, styledna.Interaction{
		Type:      t,
		ItemID:    itemID,
		Timestamp: now,
		Aesthetic: append([]string{}, aesthetic...),
	})
	if len(log) > MaxInteractions {
		log = slices.Clone(log[len(log)-MaxInteractions:])
	}
	p.StyleInteractions = log

	if t.Positive() {
		dna := styledna.Calculate(log, now)
		p.StyleDNA = &dna
	}

	if err := write(ctx, c, KeyProfile, p); err != nil {
		return nil, err
	}
	return p, nil
}

// StyleDNA returns the profile's summary, or the default summary when the
// profile has none.
func (c *Closet) StyleDNA(ctx context.Context) (styledna.DNA, error) {
	p, err := c.Profile(ctx)
	if err != nil {
		return styledna.DNA{}, err
	}
	if p == nil || p.StyleDNA == nil {
		return styledna.Default(c.store.now()), nil
	}
	return *p.StyleDNA, nil
}

// SavedItems returns the saved items in save order.
func (c *Closet) SavedItems(ctx context.Context) ([]catalog.ClothingItem, error) {
	return storage.Read(ctx, c.store.storage, c.Key(KeySaved), []catalog.ClothingItem{})
}

// ToggleSavedItem removes item if saved, otherwise appends it. It reports
// whether the item is saved afterwards.
func (c *Closet) ToggleSavedItem(ctx context.Context, item catalog.ClothingItem) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.SavedItems(ctx)
	if err != nil {
		return false, err
	}

	saved := true
	if i := slices.IndexFunc(items, func(it catalog.ClothingItem) bool { return it.ID == item.ID }); i >= 0 {
		items = slices.Delete(items, i, i+1)
		saved = false
	} else {
		items = append(items, item)
	}

	if err := write(ctx, c, KeySaved, items); err != nil {
		return false, err
	}
	return saved, nil
}

// IsItemSaved reports whether id is among the saved items.
func (c *Closet) IsItemSaved(ctx context.Context, id string) (bool, error) {
	items, err := c.SavedItems(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(items, func(it catalog.ClothingItem) bool { return it.ID == id }), nil
}

// CategoryAll selects every saved item.
const CategoryAll = catalog.CategoryAll

// SavedItemsByCategory filters saved items by category.
func (c *Closet) SavedItemsByCategory(ctx context.Context, category string) ([]catalog.ClothingItem, error) {
	items, err := c.SavedItems(ctx)
	if err != nil || category == "" || category == CategoryAll {
		return items, err
	}
	out := []catalog.ClothingItem{}
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out, nil
}

// OutfitTotal sums the prices of the saved items whose ids are listed.
// Ids that are not saved are ignored.
func (c *Closet) OutfitTotal(ctx context.Context, ids []string) (float64, error) {
	items, err := c.SavedItems(ctx)
	if err != nil {
		return 0, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var total float64
	for _, it := range items {
		if want[it.ID] {
			total += it.Price
		}
	}
	return total, nil
}

// Cart returns the cart entries.
func (c *Closet) Cart(ctx context.Context) ([]CartItem, error) {
	return storage.Read(ctx, c.store.storage, c.Key(KeyCart), []CartItem{})
}

func (c *Closet) updateCart(ctx context.Context, fn func([]CartItem) []CartItem) ([]CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cart, err := c.Cart(ctx)
	if err != nil {
		return nil, err
	}
	cart = fn(cart)
	if err := write(ctx, c, KeyCart, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddToCart increments the quantity of item, adding it with quantity 1
// when absent.
func (c *Closet) AddToCart(ctx context.Context, item catalog.ClothingItem) ([]CartItem, error) {
	return c.updateCart(ctx, func(cart []CartItem) []CartItem {
		for i := range cart {
			if cart[i].ID == item.ID {
				cart[i].Quantity++
				return cart
			}
		}
		return append(cart, CartItem{ClothingItem: item, Quantity: 1})
	})
}

// RemoveFromCart deletes the entry for id if present.
func (c *Closet) RemoveFromCart(ctx context.Context, id string) ([]CartItem, error) {
	return c.updateCart(ctx, func(cart []CartItem) []CartItem {
		return removeID(cart, id)
	})
}

// UpdateCartQuantity sets the quantity of id. A quantity of zero or less
// removes the entry; an absent id is left alone.
func (c *Closet) UpdateCartQuantity(ctx context.Context, id string, qty int) ([]CartItem, error) {
	return c.updateCart(ctx, func(cart []CartItem) []CartItem {
		if qty <= 0 {
			return removeID(cart, id)
		}
		for i := range cart {
			if cart[i].ID == id {
				cart[i].Quantity = qty
			}
		}
		return cart
	})
}

// ClearCart empties the cart.
func (c *Closet) ClearCart(ctx context.Context) error {
	_, err := c.updateCart(ctx, func([]CartItem) []CartItem {
		return []CartItem{}
	})
	return err
}

func removeID(cart []CartItem, id string) []CartItem {
	return slices.DeleteFunc(cart, func(it CartItem) bool { return it.ID == id })
}

// ToggleSaveTracked toggles item and records a save interaction only when
// the item was newly saved.
func (c *Closet) ToggleSaveTracked(ctx context.Context, item catalog.ClothingItem) (bool, error) {
	saved, err := c.ToggleSavedItem(ctx, item)
	if err != nil || !saved {
		return saved, err
	}
	if _, err := c.TrackStyleInteraction(ctx, styledna.Save, item.ID, item.Aesthetic); err != nil {
		c.store.log.Warn("tracking save failed", "item_id", item.ID, "error", err)
	}
	return saved, nil
}

// AddToCartTracked adds item to the cart and records a purchase interaction.
func (c *Closet) AddToCartTracked(ctx context.Context, item catalog.ClothingItem) ([]CartItem, error) {
	cart, err := c.AddToCart(ctx, item)
	if err != nil {
		return nil, err
	}
	if _, err := c.TrackStyleInteraction(ctx, styledna.Purchase, item.ID, item.Aesthetic); err != nil {
		c.store.log.Warn("tracking purchase failed", "item_id", item.ID, "error", err)
	}
	return cart, nil
}
