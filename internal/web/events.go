package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/justestif/muse/internal/closet"
)

const (
	eventBuffer       = 16
	eventKeepAlive    = 25 * time.Second
	eventStreamHeader = "text/event-stream"
)

type stateEvent struct {
	name  string
	value any
}

// Events streams the client's profile, saved items and cart as
// server-sent events (GET /api/events). The current values are sent
// first, then every change published for the device. A slow client
// drops events rather than blocking writers.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug("clearing write deadline failed", "error", err)
	}

	c := h.closetFor(r)
	events := make(chan stateEvent, eventBuffer)
	cancel := c.Watch(func(name string, value any) {
		select {
		case events <- stateEvent{name: name, value: value}:
		default:
			h.log.Warn("event stream slow, dropping event", "key", name)
		}
	})
	defer cancel()

	snapshot, err := loadSnapshot(r.Context(), c)
	if err != nil {
		h.internalError(w, "loading state snapshot failed", err)
		return
	}

	w.Header().Set("Content-Type", eventStreamHeader)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range snapshot {
		if err := writeEvent(w, ev); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		h.log.Debug("flushing event stream failed", "error", err)
		return
	}

	ticker := time.NewTicker(eventKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// loadSnapshot resolves the three hooks of c.
func loadSnapshot(ctx context.Context, c *closet.Closet) ([]stateEvent, error) {
	profile := c.ProfileHook()
	defer profile.Close()
	saved := c.SavedHook()
	defer saved.Close()
	cart := c.CartHook()
	defer cart.Close()

	if err := profile.Load(ctx); err != nil {
		return nil, err
	}
	if err := saved.Load(ctx); err != nil {
		return nil, err
	}
	if err := cart.Load(ctx); err != nil {
		return nil, err
	}

	return []stateEvent{
		{name: closet.KeyProfile, value: profile.Value()},
		{name: closet.KeySaved, value: saved.Value()},
		{name: closet.KeyCart, value: cart.Value()},
	}, nil
}

func writeEvent(w http.ResponseWriter, ev stateEvent) error {
	data, err := json.Marshal(ev.value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
