// Package tabs holds the in-memory model of open browser tabs: the ordered
// registry, per-tab activity time and duplicate detection.
package tabs

import "time"

// ID is the host's stable handle for a tab while it exists.
type ID string

// WindowNone is reported by the host when no window has focus.
const WindowNone = -1

// HostTab is a tab record as the host enumerates or announces it.
type HostTab struct {
	ID       ID
	WindowID int
	Position int
	URL      string
	Title    string
}

// Tab is a tab tracked by the Registry.
type Tab struct {
	ID         ID
	WindowID   int
	Position   int
	URL        string
	Title      string
	CreatedAt  time.Time
	ActiveAt   time.Time // zero while the tab is not the focused one
	TimeActive time.Duration
}

// Active reports whether the tab is currently accumulating active time.
func (t Tab) Active() bool {
	return !t.ActiveAt.IsZero()
}

// ActiveFor returns the accumulated active time including the running stretch.
func (t Tab) ActiveFor(now time.Time) time.Duration {
	if t.Active() && now.After(t.ActiveAt) {
		return t.TimeActive + now.Sub(t.ActiveAt)
	}
	return t.TimeActive
}

// Changes carries the fields an update event touched. Nil means untouched.
type Changes struct {
	URL   *string
	Title *string
}

// Record is the persisted form of a Tab. Timestamps are unix milliseconds so
// the snapshot stays readable by any store backend.
type Record struct {
	ID         string `yaml:"id" json:"id"`
	WindowID   int    `yaml:"windowId" json:"windowId"`
	Position   int    `yaml:"index" json:"index"`
	Title      string `yaml:"title" json:"title"`
	URL        string `yaml:"url" json:"url"`
	CreatedAt  int64  `yaml:"createdAt" json:"createdAt"`
	ActiveAt   *int64 `yaml:"activeAt" json:"activeAt"`
	TimeActive int64  `yaml:"timeActive" json:"timeActive"`
}

// ToRecord converts a tab into its persisted form.
func (t Tab) ToRecord() Record {
	rec := Record{
		ID:         string(t.ID),
		WindowID:   t.WindowID,
		Position:   t.Position,
		Title:      t.Title,
		URL:        t.URL,
		CreatedAt:  t.CreatedAt.UnixMilli(),
		TimeActive: t.TimeActive.Milliseconds(),
	}
	if t.Active() {
		ms := t.ActiveAt.UnixMilli()
		rec.ActiveAt = &ms
	}
	return rec
}

// Tab converts a persisted record back into a Tab.
func (r Record) Tab() Tab {
	t := Tab{
		ID:         ID(r.ID),
		WindowID:   r.WindowID,
		Position:   r.Position,
		Title:      r.Title,
		URL:        r.URL,
		CreatedAt:  time.UnixMilli(r.CreatedAt),
		TimeActive: time.Duration(r.TimeActive) * time.Millisecond,
	}
	if r.ActiveAt != nil {
		t.ActiveAt = time.UnixMilli(*r.ActiveAt)
	}
	return t
}
