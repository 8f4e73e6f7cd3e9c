package tabs

import (
	"fmt"
	"sort"
	"time"
)

// Registry is the authoritative ordered collection of tracked tabs.
// Iteration order is insertion order. It is not safe for concurrent use;
// the engine owns it from a single goroutine.
type Registry struct {
	tabs []*Tab
	byID map[ID]*Tab
	now  func() time.Time
}

// NewRegistry creates an empty registry. now defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		byID: make(map[ID]*Tab),
		now:  now,
	}
}

// Load seeds the registry from the host's current tabs, carrying over the
// createdAt/timeActive of persisted records with the same id. activeID is
// the host's currently focused tab, or "" if unknown.
func (r *Registry) Load(host []HostTab, stored []Record, activeID ID) {
	now := r.now()
	previous := make(map[ID]Record, len(stored))
	for _, rec := range stored {
		previous[ID(rec.ID)] = rec
	}

	r.tabs = r.tabs[:0]
	r.byID = make(map[ID]*Tab, len(host))

	for _, h := range host {
		if _, dup := r.byID[h.ID]; dup {
			continue
		}
		t := &Tab{
			ID:        h.ID,
			WindowID:  h.WindowID,
			Position:  h.Position,
			URL:       h.URL,
			Title:     h.Title,
			CreatedAt: now,
		}
		if rec, ok := previous[h.ID]; ok && (rec.URL == h.URL || rec.URL == "") {
			old := rec.Tab()
			t.CreatedAt = old.CreatedAt
			t.TimeActive = old.TimeActive
			// the process ended while this tab was focused
			if old.Active() {
				t.TimeActive = old.ActiveFor(now)
			}
		}
		if activeID != "" && h.ID == activeID {
			t.ActiveAt = now
		}
		r.tabs = append(r.tabs, t)
		r.byID[t.ID] = t
	}
	r.renumber()
}

// Len returns the number of tracked tabs.
func (r *Registry) Len() int {
	return len(r.tabs)
}

// Get returns a copy of the tab with the given id.
func (r *Registry) Get(id ID) (Tab, bool) {
	t, ok := r.byID[id]
	if !ok {
		return Tab{}, false
	}
	return *t, true
}

// Tabs returns copies of all tracked tabs in iteration order.
func (r *Registry) Tabs() []Tab {
	out := make([]Tab, len(r.tabs))
	for i, t := range r.tabs {
		out[i] = *t
	}
	return out
}

// Records returns the persisted form of every tab in iteration order.
func (r *Registry) Records() []Record {
	out := make([]Record, len(r.tabs))
	for i, t := range r.tabs {
		out[i] = t.ToRecord()
	}
	return out
}

// WindowCount returns the number of tabs tracked in a window.
func (r *Registry) WindowCount(windowID int) int {
	n := 0
	for _, t := range r.tabs {
		if t.WindowID == windowID {
			n++
		}
	}
	return n
}

// Add tracks a newly created tab at its reported position. Later tabs in the
// same window shift up by one. Adding an id that is already tracked returns
// the existing tab unchanged.
func (r *Registry) Add(h HostTab) Tab {
	if t, ok := r.byID[h.ID]; ok {
		return *t
	}
	pos := clamp(h.Position, 0, r.WindowCount(h.WindowID))
	for _, t := range r.tabs {
		if t.WindowID == h.WindowID && t.Position >= pos {
			t.Position++
		}
	}
	t := &Tab{
		ID:        h.ID,
		WindowID:  h.WindowID,
		Position:  pos,
		URL:       h.URL,
		Title:     h.Title,
		CreatedAt: r.now(),
	}
	r.tabs = append(r.tabs, t)
	r.byID[t.ID] = t
	return *t
}

// Update merges changed fields into a tab. A URL change starts a fresh
// lifecycle: createdAt and timeActive reset, and an active tab restarts its
// active stretch now.
func (r *Registry) Update(id ID, ch Changes) (Tab, bool) {
	t, ok := r.byID[id]
	if !ok {
		return Tab{}, false
	}
	if ch.URL != nil {
		if t.URL != "" && *ch.URL != t.URL {
			now := r.now()
			t.CreatedAt = now
			t.TimeActive = 0
			if t.Active() {
				t.ActiveAt = now
			}
		}
		t.URL = *ch.URL
	}
	if ch.Title != nil {
		t.Title = *ch.Title
	}
	return *t, true
}

// Remove drops a tab. When windowClosing is set every tab of windowID goes
// with it and positions are left alone. Otherwise later tabs in the removed
// tab's window shift down by one. It returns the number of tabs removed;
// removing an unknown id is a no-op.
func (r *Registry) Remove(id ID, windowID int, windowClosing bool) int {
	if windowClosing {
		kept := r.tabs[:0]
		removed := 0
		for _, t := range r.tabs {
			if t.WindowID == windowID || t.ID == id {
				delete(r.byID, t.ID)
				removed++
				continue
			}
			kept = append(kept, t)
		}
		clear(r.tabs[len(kept):])
		r.tabs = kept
		return removed
	}

	t, ok := r.byID[id]
	if !ok {
		return 0
	}
	idx := r.indexOf(id)
	r.tabs = append(r.tabs[:idx], r.tabs[idx+1:]...)
	delete(r.byID, id)
	for _, other := range r.tabs {
		if other.WindowID == t.WindowID && other.Position > t.Position {
			other.Position--
		}
	}
	return 1
}

// Move places a tab at toPosition in windowID. Tabs between the old and new
// slot shift by one so positions stay dense. Moving into another window is a
// removal from the old window followed by an insertion into the new one.
func (r *Registry) Move(id ID, windowID, toPosition int) bool {
	t, ok := r.byID[id]
	if !ok {
		return false
	}

	if t.WindowID != windowID {
		for _, other := range r.tabs {
			if other != t && other.WindowID == t.WindowID && other.Position > t.Position {
				other.Position--
			}
		}
		to := clamp(toPosition, 0, r.WindowCount(windowID))
		for _, other := range r.tabs {
			if other != t && other.WindowID == windowID && other.Position >= to {
				other.Position++
			}
		}
		t.WindowID = windowID
		t.Position = to
		return true
	}

	from := t.Position
	to := clamp(toPosition, 0, r.WindowCount(windowID)-1)
	if from == to {
		return true
	}
	for _, other := range r.tabs {
		if other == t || other.WindowID != windowID {
			continue
		}
		switch {
		case from < to && other.Position > from && other.Position <= to:
			other.Position--
		case to < from && other.Position >= to && other.Position < from:
			other.Position++
		}
	}
	t.Position = to
	return true
}

// Validate checks the structural invariants: dense positions per window and
// at most one active tab overall.
func (r *Registry) Validate() error {
	perWindow := make(map[int][]int)
	active := 0
	for _, t := range r.tabs {
		perWindow[t.WindowID] = append(perWindow[t.WindowID], t.Position)
		if t.Active() {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%d tabs marked active", active)
	}
	for w, positions := range perWindow {
		sort.Ints(positions)
		for i, p := range positions {
			if p != i {
				return fmt.Errorf("window %d: positions %v are not 0..%d", w, positions, len(positions)-1)
			}
		}
	}
	return nil
}

func (r *Registry) indexOf(id ID) int {
	for i, t := range r.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// renumber makes positions dense per window while keeping their relative order.
func (r *Registry) renumber() {
	perWindow := make(map[int][]*Tab)
	for _, t := range r.tabs {
		perWindow[t.WindowID] = append(perWindow[t.WindowID], t)
	}
	for _, group := range perWindow {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Position < group[j].Position
		})
		for i, t := range group {
			t.Position = i
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
