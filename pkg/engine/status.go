package engine

import (
	"time"

	"github.com/b/procrastabs/pkg/badge"
)

// Status is a read-only snapshot of the engine, safe to read from any
// goroutine.
type Status struct {
	Badge            badge.Badge `json:"badge"`
	Tabs             int         `json:"tabs"`
	MaxTabs          int         `json:"maxTabs"`
	MaxTabsEnabled   bool        `json:"maxTabsEnabled"`
	AtCapacity       bool        `json:"atCapacity"`
	CountdownEnabled bool        `json:"countdownEnabled"`
	CountdownState   string      `json:"countdownState"`
	Remaining        int         `json:"remaining"`
	CloseDuplicates  bool        `json:"closeDuplicates"`
	FocusedWindow    int         `json:"focusedWindow"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func (s Status) sameAs(o Status) bool {
	s.UpdatedAt, o.UpdatedAt = time.Time{}, time.Time{}
	return s == o
}

// Status returns the latest snapshot.
func (e *Engine) Status() Status {
	return *e.status.Load()
}

func (e *Engine) refreshStatus() {
	next := Status{
		Badge:            e.lastBadge,
		Tabs:             e.reg.Len(),
		MaxTabs:          e.cfg.MaxTabs,
		MaxTabsEnabled:   e.cfg.MaxTabsEnabled,
		AtCapacity:       e.AtCapacity(),
		CountdownEnabled: e.cfg.CountdownEnabled,
		CountdownState:   e.sched.State().String(),
		Remaining:        e.sched.Remaining(),
		CloseDuplicates:  e.cfg.CloseDuplicates,
		FocusedWindow:    e.focused,
		UpdatedAt:        e.now(),
	}
	if next.sameAs(*e.status.Load()) {
		return
	}
	e.status.Store(&next)
	if e.onStatus != nil {
		e.onStatus(next)
	}
}
