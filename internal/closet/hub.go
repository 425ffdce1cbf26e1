package closet

import (
	"context"
	"sync"

	"github.com/justestif/muse/internal/storage"
)

// Hub fans published values out to the subscribers of a key. The last value
// of a key is cached only while the key has subscribers.
type Hub struct {
	mu     sync.Mutex
	cache  map[string]any
	subs   map[string][]subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(any)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		cache: make(map[string]any),
		subs:  make(map[string][]subscriber),
	}
}

// Subscribe registers fn for values published under key. The returned
// function removes the subscription and is safe to call more than once.
func (h *Hub) Subscribe(key string, fn func(any)) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[key] = append(h.subs[key], subscriber{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			list := h.subs[key]
			for i, s := range list {
				if s.id == id {
					h.subs[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
				delete(h.cache, key)
			}
		})
	}
}

// Publish calls every subscriber of key synchronously, in subscription
// order, and caches value when there is at least one.
func (h *Hub) Publish(key string, value any) {
	h.mu.Lock()
	if len(h.subs[key]) > 0 {
		h.cache[key] = value
	}
	subs := append([]subscriber(nil), h.subs[key]...)
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(value)
	}
}

// Cached returns the last value published or primed under key.
func (h *Hub) Cached(key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.cache[key]
	return v, ok
}

// prime stores value unless the key is already cached or unobserved, and
// returns the cached value.
func (h *Hub) prime(key string, value any) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.cache[key]; ok {
		return v
	}
	if len(h.subs[key]) > 0 {
		h.cache[key] = value
	}
	return value
}

// Hook exposes one storage key as an observable value with a loading phase.
type Hook[T any] struct {
	hub     *Hub
	storage storage.Storage
	key     string
	def     T

	mu      sync.RWMutex
	value   T
	loading bool
	cancel  func()
}

// NewHook observes key. Until Load resolves, Value returns def and
// IsLoading reports true, unless the hub already holds a value for key.
func NewHook[T any](hub *Hub, s storage.Storage, key string, def T) *Hook[T] {
	h := &Hook[T]{
		hub:     hub,
		storage: s,
		key:     key,
		def:     def,
		value:   def,
		loading: true,
	}
	if v, ok := hub.Cached(key); ok {
		if tv, ok := v.(T); ok {
			h.value = tv
			h.loading = false
		}
	}
	h.cancel = hub.Subscribe(key, h.set)
	return h
}

func (h *Hook[T]) set(v any) {
	tv, ok := v.(T)
	if !ok {
		return
	}
	h.mu.Lock()
	h.value = tv
	h.loading = false
	h.mu.Unlock()
}

// Load resolves the first read. Later calls are no-ops: published values
// keep the hook current without re-reading storage.
func (h *Hook[T]) Load(ctx context.Context) error {
	if !h.IsLoading() {
		return nil
	}
	if v, ok := h.hub.Cached(h.key); ok {
		h.set(v)
		if !h.IsLoading() {
			return nil
		}
	}

	v, err := storage.Read(ctx, h.storage, h.key, h.def)
	if err != nil {
		return err
	}
	if tv, ok := h.hub.prime(h.key, v).(T); ok {
		v = tv
	}
	h.mu.Lock()
	h.value = v
	h.loading = false
	h.mu.Unlock()
	return nil
}

// Value returns the current value.
func (h *Hook[T]) Value() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

// IsLoading reports whether the first read has not resolved yet.
func (h *Hook[T]) IsLoading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

// Close stops observing the key.
func (h *Hook[T]) Close() {
	h.cancel()
}
