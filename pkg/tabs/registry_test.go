package tabs

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func host(id string, window, pos int, url string) HostTab {
	return HostTab{ID: ID(id), WindowID: window, Position: pos, URL: url, Title: id}
}

func positions(r *Registry, window int) map[ID]int {
	out := make(map[ID]int)
	for _, t := range r.Tabs() {
		if t.WindowID == window {
			out[t.ID] = t.Position
		}
	}
	return out
}

func TestAdd_InsertsAndShifts(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 0, "https://a"))
	r.Add(host("b", 1, 1, "https://b"))
	r.Add(host("c", 1, 1, "https://c"))

	assert.Equal(t, map[ID]int{"a": 0, "c": 1, "b": 2}, positions(r, 1))
	require.NoError(t, r.Validate())
}

func TestAdd_ClampsPosition(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 7, "https://a"))
	r.Add(host("b", 1, -3, "https://b"))

	assert.Equal(t, map[ID]int{"b": 0, "a": 1}, positions(r, 1))
}

func TestAdd_ExistingIDIsUnchanged(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 0, "https://a"))
	got := r.Add(host("a", 1, 0, "https://other"))

	assert.Equal(t, "https://a", got.URL)
	assert.Equal(t, 1, r.Len())
}

func TestRemove_ShiftsLaterTabsDown(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	for i, id := range []string{"a", "b", "c", "d"} {
		r.Add(host(id, 1, i, "https://"+id))
	}
	r.Add(host("x", 2, 0, "https://x"))

	assert.Equal(t, 1, r.Remove("b", 1, false))
	assert.Equal(t, map[ID]int{"a": 0, "c": 1, "d": 2}, positions(r, 1))
	assert.Equal(t, map[ID]int{"x": 0}, positions(r, 2))
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 0, "https://a"))

	assert.Equal(t, 0, r.Remove("missing", 1, false))
	assert.Equal(t, 1, r.Len())
}

func TestRemove_WindowClosingDropsWholeWindow(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 0, "https://a"))
	r.Add(host("b", 1, 1, "https://b"))
	r.Add(host("x", 2, 0, "https://x"))

	assert.Equal(t, 2, r.Remove("a", 1, true))
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("x")
	assert.True(t, ok)
}

func TestMove(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		to   int
		want map[ID]int
	}{
		{"forward", "a", 2, map[ID]int{"b": 0, "c": 1, "a": 2, "d": 3}},
		{"backward", "d", 1, map[ID]int{"a": 0, "d": 1, "b": 2, "c": 3}},
		{"same slot", "b", 1, map[ID]int{"a": 0, "b": 1, "c": 2, "d": 3}},
		{"past end", "a", 10, map[ID]int{"b": 0, "c": 1, "d": 2, "a": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(newFakeClock().Now)
			for i, id := range []string{"a", "b", "c", "d"} {
				r.Add(host(id, 1, i, "https://"+id))
			}
			require.True(t, r.Move(tt.id, 1, tt.to))
			assert.Equal(t, tt.want, positions(r, 1))
		})
	}
}

func TestMove_AcrossWindows(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Add(host("a", 1, 0, "https://a"))
	r.Add(host("b", 1, 1, "https://b"))
	r.Add(host("x", 2, 0, "https://x"))

	require.True(t, r.Move("a", 2, 0))
	assert.Equal(t, map[ID]int{"b": 0}, positions(r, 1))
	assert.Equal(t, map[ID]int{"a": 0, "x": 1}, positions(r, 2))
}

func TestMove_Unknown(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	assert.False(t, r.Move("nope", 1, 0))
}

func TestUpdate_URLChangeStartsNewLifecycle(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)
	r.Add(host("a", 1, 0, "https://a"))
	r.Activate("a")
	clock.Advance(30 * time.Second)
	r.Activate("") // flush

	clock.Advance(10 * time.Second)
	url := "https://elsewhere"
	got, ok := r.Update("a", Changes{URL: &url})
	require.True(t, ok)

	assert.Equal(t, clock.Now(), got.CreatedAt)
	assert.Zero(t, got.TimeActive)
	assert.False(t, got.Active())
}

func TestUpdate_ActiveTabRestartsStretch(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)
	r.Add(host("a", 1, 0, "https://a"))
	r.Activate("a")
	clock.Advance(time.Minute)

	url := "https://b"
	got, _ := r.Update("a", Changes{URL: &url})
	assert.Equal(t, clock.Now(), got.ActiveAt)
	assert.Zero(t, got.TimeActive)
}

func TestUpdate_TitleOnlyKeepsLifecycle(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)
	r.Add(host("a", 1, 0, "https://a"))
	created := clock.Now()
	clock.Advance(time.Minute)

	title := "renamed"
	got, _ := r.Update("a", Changes{Title: &title})
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, created, got.CreatedAt)
}

func TestLoad_MergesPersistedMetadata(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	created := clock.Now().Add(-time.Hour)
	leftActive := clock.Now().Add(-2 * time.Minute).UnixMilli()
	stored := []Record{
		{ID: "a", URL: "https://a", CreatedAt: created.UnixMilli(), TimeActive: 5000},
		{ID: "b", URL: "https://b", CreatedAt: created.UnixMilli(), TimeActive: 1000, ActiveAt: &leftActive},
		{ID: "c", URL: "https://old", CreatedAt: created.UnixMilli(), TimeActive: 9000},
	}
	r.Load([]HostTab{
		host("a", 1, 0, "https://a"),
		host("b", 1, 1, "https://b"),
		host("c", 1, 2, "https://new"),
		host("d", 1, 3, "https://d"),
	}, stored, "a")

	a, _ := r.Get("a")
	assert.Equal(t, created.UnixMilli(), a.CreatedAt.UnixMilli())
	assert.Equal(t, 5*time.Second, a.TimeActive)
	assert.True(t, a.Active())

	b, _ := r.Get("b")
	assert.Equal(t, 2*time.Minute+time.Second, b.TimeActive)
	assert.False(t, b.Active())

	c, _ := r.Get("c")
	assert.Zero(t, c.TimeActive)
	assert.Equal(t, clock.Now(), c.CreatedAt)

	d, _ := r.Get("d")
	assert.Zero(t, d.TimeActive)
	require.NoError(t, r.Validate())
}

func TestLoad_RenumbersSparsePositions(t *testing.T) {
	r := NewRegistry(newFakeClock().Now)
	r.Load([]HostTab{
		host("a", 1, 4, "https://a"),
		host("b", 1, 9, "https://b"),
		host("c", 1, 2, "https://c"),
	}, nil, "")

	assert.Equal(t, map[ID]int{"c": 0, "a": 1, "b": 2}, positions(r, 1))
}

func TestRecordRoundTrip(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)
	r.Add(host("a", 3, 0, "https://a"))
	r.Activate("a")

	recs := r.Records()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].ActiveAt)
	got := recs[0].Tab()
	assert.Equal(t, ID("a"), got.ID)
	assert.Equal(t, 3, got.WindowID)
	assert.True(t, got.Active())
}

// Random create/remove/move sequences keep size and dense positions.
func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		r := NewRegistry(newFakeClock().Now)
		created, removed := 0, 0
		var live []ID
		for step := 0; step < 200; step++ {
			switch op := rng.Intn(4); {
			case op < 2 || len(live) == 0:
				id := ID(fmt.Sprintf("t%d-%d", run, step))
				w := rng.Intn(3)
				r.Add(host(string(id), w, rng.Intn(6), "https://x"))
				live = append(live, id)
				created++
			case op == 2:
				i := rng.Intn(len(live))
				tab, _ := r.Get(live[i])
				removed += r.Remove(live[i], tab.WindowID, false)
				live = append(live[:i], live[i+1:]...)
			default:
				id := live[rng.Intn(len(live))]
				r.Move(id, rng.Intn(3), rng.Intn(6))
			}
			if len(live) > 0 && rng.Intn(5) == 0 {
				r.Activate(live[rng.Intn(len(live))])
			}
			require.NoError(t, r.Validate(), "run %d step %d", run, step)
		}
		assert.Equal(t, created-removed, r.Len())
	}
}
