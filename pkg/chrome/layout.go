package chrome

import "github.com/b/procrastabs/pkg/tabs"

// layout mirrors the tab strip as the engine sees it. CDP exposes no strip
// index, so positions follow discovery order within each window.
type layout struct {
	windows map[int][]tabs.ID
	meta    map[tabs.ID]tabs.HostTab
}

func newLayout() *layout {
	return &layout{windows: map[int][]tabs.ID{}, meta: map[tabs.ID]tabs.HostTab{}}
}

// reset replaces the layout with a fresh enumeration, keeping the previous
// order for tabs that survive and appending new ones.
func (l *layout) reset(found []tabs.HostTab) []tabs.HostTab {
	next := newLayout()
	seen := make(map[tabs.ID]tabs.HostTab, len(found))
	for _, t := range found {
		seen[t.ID] = t
	}
	for win, ids := range l.windows {
		for _, id := range ids {
			if t, ok := seen[id]; ok && t.WindowID == win {
				next.add(t)
			}
		}
	}
	for _, t := range found {
		next.add(t)
	}
	*l = *next
	return l.all()
}

// add appends t to its window and returns it with its position. Known ids
// are returned unchanged.
func (l *layout) add(t tabs.HostTab) tabs.HostTab {
	if cur, ok := l.get(t.ID); ok {
		return cur
	}
	t.Position = len(l.windows[t.WindowID])
	l.windows[t.WindowID] = append(l.windows[t.WindowID], t.ID)
	l.meta[t.ID] = t
	return t
}

func (l *layout) get(id tabs.ID) (tabs.HostTab, bool) {
	t, ok := l.meta[id]
	if !ok {
		return tabs.HostTab{}, false
	}
	t.Position = indexOf(l.windows[t.WindowID], id)
	return t, true
}

func (l *layout) remove(id tabs.ID) (tabs.HostTab, bool) {
	t, ok := l.get(id)
	if !ok {
		return tabs.HostTab{}, false
	}
	ids := l.windows[t.WindowID]
	ids = append(ids[:t.Position], ids[t.Position+1:]...)
	if len(ids) == 0 {
		delete(l.windows, t.WindowID)
	} else {
		l.windows[t.WindowID] = ids
	}
	delete(l.meta, id)
	return t, true
}

// move puts id at the end of window and reports where it was.
func (l *layout) move(id tabs.ID, window int) (from tabs.HostTab, to int, ok bool) {
	from, ok = l.remove(id)
	if !ok {
		return tabs.HostTab{}, 0, false
	}
	moved := from
	moved.WindowID = window
	return from, l.add(moved).Position, true
}

// update records new metadata and reports what changed.
func (l *layout) update(id tabs.ID, url, title string) (tabs.Changes, bool) {
	t, ok := l.meta[id]
	if !ok {
		return tabs.Changes{}, false
	}
	var ch tabs.Changes
	if t.URL != url {
		t.URL = url
		ch.URL = &url
	}
	if t.Title != title {
		t.Title = title
		ch.Title = &title
	}
	l.meta[id] = t
	return ch, ch.URL != nil || ch.Title != nil
}

func (l *layout) all() []tabs.HostTab {
	out := make([]tabs.HostTab, 0, len(l.meta))
	for _, ids := range l.windows {
		for _, id := range ids {
			t, _ := l.get(id)
			out = append(out, t)
		}
	}
	return out
}

func (l *layout) ids() []tabs.ID {
	out := make([]tabs.ID, 0, len(l.meta))
	for id := range l.meta {
		out = append(out, id)
	}
	return out
}

func indexOf(ids []tabs.ID, id tabs.ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
