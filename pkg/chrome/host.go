// Package chrome drives a Chromium browser over the DevTools protocol and
// presents it to the engine as a tab host.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/perf"
	"github.com/b/procrastabs/pkg/tabs"
)

var ErrNotConnected = errors.New("browser not connected")

type Options struct {
	// ControlURL is the DevTools websocket of a running browser. Empty
	// launches one.
	ControlURL string
	Bin        string
	Headless   bool
	Logger     *slog.Logger
}

// Host implements engine.Host on top of a rod.Browser.
type Host struct {
	browser  *rod.Browser
	launched bool
	logger   *slog.Logger

	mu          sync.Mutex
	layout      *layout
	pages       map[tabs.ID]*rod.Page
	lastFocused int
}

var _ engine.Host = (*Host)(nil)

// Connect attaches to opts.ControlURL or launches a browser.
func Connect(ctx context.Context, opts Options) (*Host, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "chrome")

	controlURL := opts.ControlURL
	launched := false
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		launched = true
		logger.Info("browser launched", "control_url", controlURL)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	logger.Info("browser connected", "control_url", controlURL)

	return &Host{
		browser:     browser,
		launched:    launched,
		logger:      logger,
		layout:      newLayout(),
		pages:       map[tabs.ID]*rod.Page{},
		lastFocused: tabs.WindowNone,
	}, nil
}

// Shutdown closes a browser this host launched. A browser it attached to is
// left running.
func (h *Host) Shutdown() error {
	if h.browser == nil || !h.launched {
		return nil
	}
	return h.browser.Close()
}

func (h *Host) QueryAll(ctx context.Context) ([]tabs.HostTab, error) {
	if h.browser == nil {
		return nil, ErrNotConnected
	}
	b := h.browser.Context(ctx)
	var res *proto.TargetGetTargetsResult
	err := perf.Track("chrome list targets", func() (err error) {
		res, err = proto.TargetGetTargets{}.Call(b)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	var found []tabs.HostTab
	for _, info := range res.TargetInfos {
		if info.Type != proto.TargetTargetInfoTypePage {
			continue
		}
		win, err := windowOf(b, info.TargetID)
		if err != nil {
			h.logger.Debug("target has no window", "target", info.TargetID, "error", err)
			continue
		}
		found = append(found, tabs.HostTab{
			ID:       tabs.ID(info.TargetID),
			WindowID: win,
			URL:      info.URL,
			Title:    info.Title,
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layout.reset(found), nil
}

// QueryActive probes every page for visibility and focus.
func (h *Host) QueryActive(ctx context.Context, windowID int) (*tabs.HostTab, error) {
	if h.browser == nil {
		return nil, ErrNotConnected
	}
	state := h.probe(ctx)
	if windowID == tabs.WindowNone {
		windowID = state.window
	}
	if windowID == tabs.WindowNone {
		h.mu.Lock()
		windowID = h.lastFocused
		h.mu.Unlock()
	}
	id, ok := state.active[windowID]
	if !ok {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.layout.get(id)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Close closes each target. Targets that are already gone are skipped.
func (h *Host) Close(ctx context.Context, ids []tabs.ID) error {
	if h.browser == nil {
		return ErrNotConnected
	}
	b := h.browser.Context(ctx)
	var errs []error
	for _, id := range ids {
		_, err := proto.TargetCloseTarget{TargetID: proto.TargetTargetID(id)}.Call(b)
		if err != nil && !isMissingTarget(err) {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// probe evaluates probeScript in every known page. Pages that fail to answer
// (crashed, discarded, still loading) are skipped.
func (h *Host) probe(ctx context.Context) focusState {
	defer perf.Start("chrome focus probe").Stop()
	state := newFocusState()
	b := h.browser.Context(ctx)

	h.mu.Lock()
	ids := h.layout.ids()
	h.mu.Unlock()

	for _, id := range ids {
		win, err := windowOf(b, proto.TargetTargetID(id))
		if err != nil {
			continue
		}
		page, err := h.page(b, id)
		if err != nil {
			h.logger.Debug("attach failed", "tab", id, "error", err)
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		res, err := page.Context(pctx).Eval(probeScript)
		cancel()
		if err != nil {
			state.windows[id] = win
			continue
		}
		state.observe(id, win, res.Value.Str())
	}

	if state.window != tabs.WindowNone {
		h.mu.Lock()
		h.lastFocused = state.window
		h.mu.Unlock()
	}
	return state
}

func (h *Host) page(b *rod.Browser, id tabs.ID) (*rod.Page, error) {
	h.mu.Lock()
	p, ok := h.pages[id]
	h.mu.Unlock()
	if ok {
		return p, nil
	}
	p, err := b.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.pages[id] = p
	h.mu.Unlock()
	return p, nil
}

func (h *Host) forget(id tabs.ID) {
	h.mu.Lock()
	delete(h.pages, id)
	h.mu.Unlock()
}

func windowOf(b *rod.Browser, id proto.TargetTargetID) (int, error) {
	res, err := proto.BrowserGetWindowForTarget{TargetID: id}.Call(b)
	if err != nil {
		return tabs.WindowNone, err
	}
	return int(res.WindowID), nil
}

func isMissingTarget(err error) bool {
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		return strings.Contains(cdpErr.Message, "No target with given id")
	}
	return false
}
