// Package engine is the tab lifecycle and enforcement engine. One goroutine
// owns all state and consumes a single ordered event queue, so no two
// mutations of the registry or the live configuration ever interleave.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/b/procrastabs/pkg/badge"
	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/countdown"
	"github.com/b/procrastabs/pkg/perf"
	"github.com/b/procrastabs/pkg/store"
	"github.com/b/procrastabs/pkg/tabs"
)

var ErrNotInitialized = errors.New("engine not initialized")

// Host is the tab enumeration and mutation collaborator.
type Host interface {
	QueryAll(ctx context.Context) ([]tabs.HostTab, error)
	// QueryActive returns the active tab of windowID, or of the last
	// focused window when windowID is tabs.WindowNone. Nil when none.
	QueryActive(ctx context.Context, windowID int) (*tabs.HostTab, error)
	// Close is idempotent: unknown ids are not an error.
	Close(ctx context.Context, ids []tabs.ID) error
}

// Options wires an Engine to its collaborators.
type Options struct {
	Host    Host
	Store   store.Store
	Painter badge.Painter
	// Defaults are used for knobs the store has no valid value for.
	Defaults config.Engine
	// Profile selects what is published: config.ProfileFull or ProfileCount.
	Profile string
	Logger  *slog.Logger
	Now     func() time.Time
	// TickInterval is the countdown resolution (default 1s).
	TickInterval time.Duration
	// OnStatus is called from the engine goroutine whenever Status changes.
	OnStatus func(Status)
}

// Engine owns the registry, live configuration and countdown. All of its
// state is touched only from the Run goroutine.
type Engine struct {
	host     Host
	store    store.Store
	painter  badge.Painter
	profile  string
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	onStatus func(Status)

	reg     *tabs.Registry
	cfg     config.Engine
	sched   *countdown.Scheduler
	focused int
	// bypass suppresses publishing while an external store change is applied.
	bypass      bool
	initialized bool
	lastBadge   badge.Badge

	events chan Event
	status atomic.Pointer[Status]
}

// New builds an Engine; Init must be called before Run.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Painter == nil {
		opts.Painter = &badge.Recorder{}
	}
	if opts.Profile == "" {
		opts.Profile = config.ProfileFull
	}
	if opts.Defaults.MaxTabs <= 0 || opts.Defaults.CountdownMinutes <= 0 {
		opts.Defaults = config.Default().Engine()
	}
	e := &Engine{
		host:     opts.Host,
		store:    opts.Store,
		painter:  opts.Painter,
		profile:  opts.Profile,
		logger:   opts.Logger.With("component", "engine"),
		now:      opts.Now,
		interval: opts.TickInterval,
		onStatus: opts.OnStatus,
		reg:      tabs.NewRegistry(opts.Now),
		cfg:      opts.Defaults,
		sched:    countdown.New(),
		focused:  tabs.WindowNone,
		events:   make(chan Event, 256),
	}
	e.status.Store(&Status{})
	return e
}

// Init seeds the registry and configuration from the collaborators. Failing
// collaborators are logged and the engine starts from what it has.
func (e *Engine) Init(ctx context.Context) error {
	host, err := e.host.QueryAll(ctx)
	if err != nil {
		e.logger.Warn("tab enumeration failed, starting empty", "error", err)
		host = nil
	}
	var activeID tabs.ID
	active, err := e.host.QueryActive(ctx, tabs.WindowNone)
	if err != nil {
		e.logger.Warn("active tab query failed", "error", err)
	} else if active != nil {
		activeID = active.ID
		e.focused = active.WindowID
	}

	stored, err := e.store.Get(ctx)
	if err != nil {
		e.logger.Warn("store read failed, using defaults", "error", err)
		stored = map[string]any{}
	}
	var records []tabs.Record
	if v, ok := stored[config.KeyTabs]; ok && v != nil {
		if err := store.Decode(v, &records); err != nil {
			e.logger.Warn("stored tab snapshot unreadable", "error", err)
			records = nil
		}
	}

	e.reg.Load(host, records, activeID)
	e.cfg = e.loadInitial(stored)
	e.initialized = true

	e.logger.Info("engine initialized",
		"tabs", e.reg.Len(),
		"max_tabs", e.cfg.MaxTabs,
		"max_tabs_enabled", e.cfg.MaxTabsEnabled,
		"countdown_enabled", e.cfg.CountdownEnabled,
		"focused_window", e.focused)

	e.publishConfig(ctx)
	e.publish(ctx)
	e.reconcile()
	e.paint()
	e.refreshStatus()
	return nil
}

// Post enqueues an event for the Run loop.
func (e *Engine) Post(ctx context.Context, ev Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until ctx is done. Store changes and countdown ticks
// are posted into the same queue as host events, so every event is handled
// in the order it arrived.
func (e *Engine) Run(ctx context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.forwardChanges(ctx)

	var stopTicks context.CancelFunc
	var gen uint64
	syncTicker := func() {
		running := e.sched.Running()
		if running && stopTicks != nil && gen == e.sched.Generation() {
			return
		}
		if stopTicks != nil {
			stopTicks()
			stopTicks = nil
		}
		if running {
			gen = e.sched.Generation()
			var tickCtx context.Context
			tickCtx, stopTicks = context.WithCancel(ctx)
			go e.forwardTicks(tickCtx, gen)
		}
	}
	defer func() {
		if stopTicks != nil {
			stopTicks()
		}
	}()

	syncTicker()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.Dispatch(ctx, ev)
		}
		syncTicker()
	}
}

// forwardTicks posts a Tick for countdown run gen every interval.
func (e *Engine) forwardTicks(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Post(ctx, Tick{Gen: gen}); err != nil {
				return
			}
		}
	}
}

func (e *Engine) forwardChanges(ctx context.Context) {
	changes := e.store.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				e.logger.Warn("store change feed closed")
				return
			}
			if err := e.Post(ctx, StoreChanged{Changes: ch}); err != nil {
				return
			}
		}
	}
}

// Dispatch processes one event to completion. Only the Run goroutine (or a
// test driving the engine directly) may call it.
func (e *Engine) Dispatch(ctx context.Context, ev Event) {
	t := perf.Start("dispatch " + ev.eventName())
	defer t.Stop()

	if _, tick := ev.(Tick); !tick {
		e.logger.Debug("event", "event", ev.eventName())
	}

	switch ev := ev.(type) {
	case TabCreated:
		e.onCreated(ctx, ev)
	case TabUpdated:
		e.onUpdated(ctx, ev)
	case TabRemoved:
		e.onRemoved(ctx, ev)
	case TabMoved:
		e.onMoved(ctx, ev)
	case TabActivated:
		e.onActivated(ctx, ev)
	case FocusChanged:
		e.onFocusChanged(ctx, ev)
	case StoreChanged:
		e.onStoreChanged(ctx, ev)
	case Tick:
		e.onTick(ctx, ev.Gen)
	case Resume:
		e.onResume()
	case BadgeReloaded:
		e.cfg.Badge = ev.Badge
		e.paint()
	}
	e.refreshStatus()
}

// Config returns the live configuration. Engine goroutine only.
func (e *Engine) Config() config.Engine {
	return e.cfg
}

// Tabs returns the tracked tabs. Engine goroutine only.
func (e *Engine) Tabs() []tabs.Tab {
	return e.reg.Tabs()
}

// Countdown exposes the scheduler state. Engine goroutine only.
func (e *Engine) Countdown() (countdown.State, int) {
	return e.sched.State(), e.sched.Elapsed()
}

func (e *Engine) onCreated(ctx context.Context, ev TabCreated) {
	if e.cfg.MaxTabsEnabled && e.reg.Len() >= e.cfg.MaxTabs {
		e.logger.Info("tab over ceiling, closing",
			"tab", ev.Tab.ID, "tabs", e.reg.Len(), "max_tabs", e.cfg.MaxTabs)
		e.close(ctx, "over_limit", ev.Tab.ID)
		e.paint()
		return
	}

	tab := e.reg.Add(ev.Tab)
	if e.cfg.CloseDuplicates {
		if dups := e.reg.DuplicatesOf(tab.ID); len(dups) > 0 {
			e.close(ctx, "duplicate", idsOf(dups)...)
		}
	}
	e.reconcile()
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onUpdated(ctx context.Context, ev TabUpdated) {
	if _, ok := e.reg.Update(ev.ID, ev.Changes); !ok {
		return
	}
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onRemoved(ctx context.Context, ev TabRemoved) {
	if e.reg.Remove(ev.ID, ev.WindowID, ev.WindowClosing) == 0 {
		// rejected creations and repeated removals land here
		return
	}
	if e.sched.Target() == ev.ID {
		e.sched.SetTarget("")
	}
	e.reconcile()
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onMoved(ctx context.Context, ev TabMoved) {
	if !e.reg.Move(ev.ID, ev.WindowID, ev.ToPosition) {
		return
	}
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onActivated(ctx context.Context, ev TabActivated) {
	if e.focused == tabs.WindowNone || ev.WindowID != e.focused {
		return
	}
	e.reg.Activate(ev.ID)
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onFocusChanged(ctx context.Context, ev FocusChanged) {
	e.focused = ev.WindowID
	if ev.WindowID == tabs.WindowNone {
		e.reg.Deactivate()
	} else {
		active, err := e.host.QueryActive(ctx, ev.WindowID)
		switch {
		case err != nil:
			e.logger.Warn("active tab query failed", "window", ev.WindowID, "error", err)
			e.reg.Deactivate()
		case active == nil:
			e.reg.Deactivate()
		default:
			e.reg.Activate(active.ID)
		}
	}
	e.reconcile()
	e.publish(ctx)
	e.paint()
}

func (e *Engine) onResume() {
	if err := e.reg.Validate(); err != nil {
		e.logger.Error("registry invariant violated", "error", err)
	}
	e.reconcile()
	e.paint()
}

func (e *Engine) close(ctx context.Context, reason string, ids ...tabs.ID) {
	if len(ids) == 0 {
		return
	}
	e.logger.Info("closing tabs", "reason", reason, "ids", ids)
	if err := e.host.Close(ctx, ids); err != nil {
		e.logger.Warn("close request failed", "reason", reason, "ids", ids, "error", err)
	}
}

func (e *Engine) paint() {
	b := badge.Render(badge.State{
		Count:           e.reg.Len(),
		MaxTabsEnabled:  e.cfg.MaxTabsEnabled,
		MaxTabs:         e.cfg.MaxTabs,
		CountdownActive: e.sched.Running(),
		Remaining:       e.sched.Remaining(),
	}, e.cfg.Badge)
	e.lastBadge = b
	if err := badge.Paint(e.painter, b); err != nil {
		e.logger.Warn("badge paint failed", "error", err)
	}
}

func idsOf(ts []tabs.Tab) []tabs.ID {
	out := make([]tabs.ID, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
