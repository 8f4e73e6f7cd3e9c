package tabs

import "time"

// Activate makes id the single active tab. Its active stretch starts now
// unless it was already running; every other active tab has its elapsed
// time flushed and is cleared. It reports whether id is tracked. An unknown
// id still flushes the others.
func (r *Registry) Activate(id ID) bool {
	now := r.now()
	found := false
	for _, t := range r.tabs {
		if t.ID == id {
			found = true
			if !t.Active() {
				t.ActiveAt = now
			}
			continue
		}
		flush(t, now)
	}
	return found
}

// Deactivate flushes every active tab. Used when no window has focus.
func (r *Registry) Deactivate() {
	now := r.now()
	for _, t := range r.tabs {
		flush(t, now)
	}
}

// ActiveTab returns the tab currently accumulating active time, if any.
func (r *Registry) ActiveTab() (Tab, bool) {
	for _, t := range r.tabs {
		if t.Active() {
			return *t, true
		}
	}
	return Tab{}, false
}

func flush(t *Tab, now time.Time) {
	if !t.Active() {
		return
	}
	t.TimeActive = t.ActiveFor(now)
	t.ActiveAt = time.Time{}
}
