package engine

import (
	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/store"
	"github.com/b/procrastabs/pkg/tabs"
)

// Event is one host, store or timer notification. The set is closed: only
// the types in this file implement it.
type Event interface {
	eventName() string
}

type TabCreated struct {
	Tab tabs.HostTab
}

type TabUpdated struct {
	ID      tabs.ID
	Changes tabs.Changes
}

type TabRemoved struct {
	ID            tabs.ID
	WindowID      int
	WindowClosing bool
}

type TabMoved struct {
	ID           tabs.ID
	WindowID     int
	FromPosition int
	ToPosition   int
}

type TabActivated struct {
	ID       tabs.ID
	WindowID int
}

// FocusChanged carries the newly focused window, or tabs.WindowNone.
type FocusChanged struct {
	WindowID int
}

type StoreChanged struct {
	Changes store.Changes
}

// Tick is one second of countdown time. Gen is the countdown run the tick
// was timed for; ticks from an earlier run are dropped. Zero always applies.
type Tick struct {
	Gen uint64
}

// Resume asks the engine to re-derive its state after a possible suspension.
type Resume struct{}

// BadgeReloaded replaces the badge options after the config file changed.
type BadgeReloaded struct {
	Badge config.Badge
}

func (TabCreated) eventName() string    { return "tab_created" }
func (TabUpdated) eventName() string    { return "tab_updated" }
func (TabRemoved) eventName() string    { return "tab_removed" }
func (TabMoved) eventName() string      { return "tab_moved" }
func (TabActivated) eventName() string  { return "tab_activated" }
func (FocusChanged) eventName() string  { return "focus_changed" }
func (StoreChanged) eventName() string  { return "store_changed" }
func (Tick) eventName() string          { return "tick" }
func (Resume) eventName() string        { return "resume" }
func (BadgeReloaded) eventName() string { return "badge_reloaded" }

// Name returns the event's log name.
func Name(ev Event) string {
	return ev.eventName()
}
