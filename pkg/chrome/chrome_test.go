package chrome

import (
	"context"
	"log/slog"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/tabs"
)

func offlineHost(found ...tabs.HostTab) *Host {
	h := &Host{
		logger:      slog.Default(),
		layout:      newLayout(),
		pages:       map[tabs.ID]*rod.Page{},
		lastFocused: tabs.WindowNone,
	}
	h.layout.reset(found)
	return h
}

func ht(id string, win int, url string) tabs.HostTab {
	return tabs.HostTab{ID: tabs.ID(id), WindowID: win, URL: url}
}

func TestLayout_PositionsFollowDiscoveryOrder(t *testing.T) {
	l := newLayout()
	assert.Equal(t, 0, l.add(ht("a", 1, "")).Position)
	assert.Equal(t, 1, l.add(ht("b", 1, "")).Position)
	assert.Equal(t, 0, l.add(ht("c", 2, "")).Position)
	assert.Equal(t, 1, l.add(ht("a", 1, "")).Position, "known id keeps its slot")

	_, ok := l.remove("a")
	require.True(t, ok)
	b, _ := l.get("b")
	assert.Equal(t, 0, b.Position)

	_, ok = l.remove("a")
	assert.False(t, ok)
}

func TestLayout_ResetKeepsSurvivorOrder(t *testing.T) {
	l := newLayout()
	l.add(ht("a", 1, ""))
	l.add(ht("b", 1, ""))
	l.add(ht("c", 1, ""))

	l.reset([]tabs.HostTab{ht("d", 1, ""), ht("c", 1, ""), ht("a", 1, "")})
	for id, want := range map[tabs.ID]int{"a": 0, "c": 1, "d": 2} {
		got, ok := l.get(id)
		require.True(t, ok)
		assert.Equal(t, want, got.Position, "tab %s", id)
	}
	_, ok := l.get("b")
	assert.False(t, ok)
}

func TestLayout_MoveAppendsToTargetWindow(t *testing.T) {
	l := newLayout()
	l.add(ht("a", 1, ""))
	l.add(ht("b", 1, ""))
	l.add(ht("c", 2, ""))

	from, to, ok := l.move("a", 2)
	require.True(t, ok)
	assert.Equal(t, 1, from.WindowID)
	assert.Equal(t, 0, from.Position)
	assert.Equal(t, 1, to)

	b, _ := l.get("b")
	assert.Equal(t, 0, b.Position)
}

func TestLayout_UpdateReportsChangedFields(t *testing.T) {
	l := newLayout()
	l.add(tabs.HostTab{ID: "a", WindowID: 1, URL: "https://a", Title: "A"})

	ch, changed := l.update("a", "https://a", "A")
	assert.False(t, changed)
	assert.Nil(t, ch.URL)

	ch, changed = l.update("a", "https://b", "A")
	require.True(t, changed)
	assert.Equal(t, "https://b", *ch.URL)
	assert.Nil(t, ch.Title)

	_, changed = l.update("missing", "x", "y")
	assert.False(t, changed)
}

func TestFocusState_Observe(t *testing.T) {
	s := newFocusState()
	s.observe("a", 1, "hidden:false")
	s.observe("b", 1, "visible:false")
	s.observe("c", 2, "visible:false")
	s.observe("d", 2, "visible:true")

	assert.Equal(t, 2, s.window)
	assert.Equal(t, tabs.ID("b"), s.active[1])
	assert.Equal(t, tabs.ID("d"), s.active[2])
	assert.Equal(t, 1, s.windows["a"])
}

func TestFocusEvents(t *testing.T) {
	prev := newFocusState()
	prev.window = 1
	prev.active[1] = "a"

	same := newFocusState()
	same.window = 1
	same.active[1] = "a"
	assert.Empty(t, focusEvents(prev, same))

	switched := newFocusState()
	switched.window = 1
	switched.active[1] = "b"
	assert.Equal(t, []engine.Event{engine.TabActivated{ID: "b", WindowID: 1}}, focusEvents(prev, switched))

	lost := newFocusState()
	assert.Equal(t, []engine.Event{engine.FocusChanged{WindowID: tabs.WindowNone}}, focusEvents(prev, lost))

	other := newFocusState()
	other.window = 2
	other.active[2] = "c"
	assert.Equal(t, []engine.Event{engine.FocusChanged{WindowID: 2}}, focusEvents(prev, other))
}

func TestTranslate_DestroyAndInfoChange(t *testing.T) {
	h := offlineHost(ht("a", 1, "https://a"), ht("b", 1, "https://b"))
	ctx := context.Background()

	evs := h.translate(ctx, &proto.TargetTargetInfoChanged{TargetInfo: &proto.TargetTargetInfo{
		TargetID: "b", Type: proto.TargetTargetInfoTypePage, URL: "https://c",
	}})
	require.Len(t, evs, 1)
	upd := evs[0].(engine.TabUpdated)
	assert.Equal(t, tabs.ID("b"), upd.ID)
	assert.Equal(t, "https://c", *upd.Changes.URL)

	evs = h.translate(ctx, &proto.TargetTargetDestroyed{TargetID: "a"})
	assert.Equal(t, []engine.Event{engine.TabRemoved{ID: "a", WindowID: 1}}, evs)
	assert.Empty(t, h.translate(ctx, &proto.TargetTargetDestroyed{TargetID: "a"}))

	// service workers and the like are not tabs
	assert.Empty(t, h.translate(ctx, &proto.TargetTargetInfoChanged{TargetInfo: &proto.TargetTargetInfo{
		TargetID: "w", Type: proto.TargetTargetInfoType("service_worker"),
	}}))
}

func TestMoves(t *testing.T) {
	h := offlineHost(ht("a", 1, ""), ht("b", 1, ""), ht("c", 2, ""))
	state := newFocusState()
	state.windows["a"] = 1
	state.windows["b"] = 2
	state.windows["c"] = 2

	evs := h.moves(state)
	assert.Equal(t, []engine.Event{engine.TabMoved{ID: "b", WindowID: 2, FromPosition: 1, ToPosition: 1}}, evs)
	assert.Empty(t, h.moves(state))
}

func TestDisconnectedHost(t *testing.T) {
	h := offlineHost()
	_, err := h.QueryAll(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, h.Close(context.Background(), []tabs.ID{"a"}), ErrNotConnected)
	assert.NoError(t, h.Shutdown())
}
