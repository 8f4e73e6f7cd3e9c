package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/tabs"
)

// Sink receives translated host events, normally engine.Engine.Post.
type Sink func(ctx context.Context, ev engine.Event) error

// Watch forwards target lifecycle events and polled focus changes to sink
// until ctx is done. QueryAll must have run first so the layout is seeded.
func (h *Host) Watch(ctx context.Context, sink Sink, focusPoll time.Duration) error {
	if h.browser == nil {
		return ErrNotConnected
	}
	if focusPoll <= 0 {
		focusPoll = time.Second
	}
	b := h.browser.Context(ctx)
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	// CDP calls are not made from inside the event callbacks; the loop below
	// handles everything in order.
	raw := make(chan any, 64)
	push := func(e any) {
		select {
		case raw <- e:
		case <-ctx.Done():
		}
	}
	wait := b.EachEvent(
		func(e *proto.TargetTargetCreated) { push(e) },
		func(e *proto.TargetTargetDestroyed) { push(e) },
		func(e *proto.TargetTargetInfoChanged) { push(e) },
	)
	go wait()

	post := func(evs ...engine.Event) error {
		for _, ev := range evs {
			if err := sink(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(focusPoll)
	defer ticker.Stop()
	prev := h.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-raw:
			if err := post(h.translate(ctx, e)...); err != nil {
				return err
			}
		case <-ticker.C:
			next := h.probe(ctx)
			evs := h.moves(next)
			evs = append(evs, focusEvents(prev, next)...)
			prev = next
			if err := post(evs...); err != nil {
				return err
			}
		}
	}
}

func (h *Host) translate(ctx context.Context, e any) []engine.Event {
	switch e := e.(type) {
	case *proto.TargetTargetCreated:
		info := e.TargetInfo
		if info == nil || info.Type != proto.TargetTargetInfoTypePage {
			return nil
		}
		win, err := windowOf(h.browser.Context(ctx), info.TargetID)
		if err != nil {
			h.logger.Debug("new target has no window", "target", info.TargetID, "error", err)
			return nil
		}
		h.mu.Lock()
		t := h.layout.add(tabs.HostTab{ID: tabs.ID(info.TargetID), WindowID: win, URL: info.URL, Title: info.Title})
		h.mu.Unlock()
		return []engine.Event{engine.TabCreated{Tab: t}}

	case *proto.TargetTargetDestroyed:
		id := tabs.ID(e.TargetID)
		h.forget(id)
		h.mu.Lock()
		t, ok := h.layout.remove(id)
		h.mu.Unlock()
		if !ok {
			return nil
		}
		return []engine.Event{engine.TabRemoved{ID: id, WindowID: t.WindowID}}

	case *proto.TargetTargetInfoChanged:
		info := e.TargetInfo
		if info == nil || info.Type != proto.TargetTargetInfoTypePage {
			return nil
		}
		h.mu.Lock()
		ch, changed := h.layout.update(tabs.ID(info.TargetID), info.URL, info.Title)
		h.mu.Unlock()
		if !changed {
			return nil
		}
		return []engine.Event{engine.TabUpdated{ID: tabs.ID(info.TargetID), Changes: ch}}
	}
	return nil
}

// moves reports tabs whose window differs from the layout.
func (h *Host) moves(state focusState) []engine.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var evs []engine.Event
	for id, win := range state.windows {
		cur, ok := h.layout.get(id)
		if !ok || cur.WindowID == win {
			continue
		}
		from, to, ok := h.layout.move(id, win)
		if !ok {
			continue
		}
		evs = append(evs, engine.TabMoved{ID: id, WindowID: win, FromPosition: from.Position, ToPosition: to})
	}
	return evs
}
