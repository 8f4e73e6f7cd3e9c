package chrome

import (
	"strings"

	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/tabs"
)

// focusState is one poll of which window has focus and which tab is
// showing in each window.
type focusState struct {
	window  int
	active  map[int]tabs.ID
	windows map[tabs.ID]int
}

func newFocusState() focusState {
	return focusState{window: tabs.WindowNone, active: map[int]tabs.ID{}, windows: map[tabs.ID]int{}}
}

// probeScript reports "<visibilityState>:<hasFocus>" for a page.
const probeScript = `() => document.visibilityState + ":" + document.hasFocus()`

// observe folds one page's probe result into the state.
func (s *focusState) observe(id tabs.ID, window int, probe string) {
	s.windows[id] = window
	vis, focus, _ := strings.Cut(probe, ":")
	if vis == "visible" {
		if _, taken := s.active[window]; !taken {
			s.active[window] = id
		}
	}
	if focus == "true" {
		s.window = window
		s.active[window] = id
	}
}

// focusEvents derives the events that turn prev into next. A focus change
// is enough on its own since the engine asks for the active tab itself.
func focusEvents(prev, next focusState) []engine.Event {
	if next.window != prev.window {
		return []engine.Event{engine.FocusChanged{WindowID: next.window}}
	}
	if next.window == tabs.WindowNone {
		return nil
	}
	id, ok := next.active[next.window]
	if !ok || id == prev.active[next.window] {
		return nil
	}
	return []engine.Event{engine.TabActivated{ID: id, WindowID: next.window}}
}
