package engine

import (
	"context"

	"github.com/b/procrastabs/pkg/tabs"
)

// AtCapacity reports whether the ceiling is on and exactly reached.
func (e *Engine) AtCapacity() bool {
	return e.cfg.MaxTabsEnabled && e.reg.Len() == e.cfg.MaxTabs
}

func (e *Engine) shouldCountDown() bool {
	return e.cfg.CountdownEnabled && e.AtCapacity() && e.focused != tabs.WindowNone
}

// reconcile starts or stops the countdown to match the registry. It never
// trusts a Running flag on its own: capacity is re-derived every time.
func (e *Engine) reconcile() {
	want := e.shouldCountDown()
	switch {
	case want && !e.sched.Running():
		target := e.activeID()
		e.sched.Start(e.cfg.CountdownSeconds(), target)
		e.logger.Info("countdown started", "seconds", e.sched.Total(), "target", target)
	case !want && e.sched.Running():
		e.sched.Stop()
		e.logger.Info("countdown stopped",
			"tabs", e.reg.Len(), "max_tabs", e.cfg.MaxTabs, "focused_window", e.focused)
	}
}

func (e *Engine) restartCountdown() {
	if !e.sched.Running() {
		e.reconcile()
		return
	}
	target := e.sched.Target()
	if target == "" {
		target = e.activeID()
	}
	e.sched.Restart(e.cfg.CountdownSeconds(), target)
	e.logger.Info("countdown restarted", "seconds", e.sched.Total())
}

func (e *Engine) onTick(ctx context.Context, gen uint64) {
	if !e.sched.Running() {
		return
	}
	if gen != 0 && gen != e.sched.Generation() {
		return
	}
	if !e.shouldCountDown() {
		e.reconcile()
		e.paint()
		return
	}
	step := e.sched.Tick()
	if step.Expired {
		e.expire(ctx, step.Target)
	}
	e.paint()
}

// expire issues at most one close request and always returns the scheduler
// to Idle.
func (e *Engine) expire(ctx context.Context, target tabs.ID) {
	defer e.sched.Stop()

	if !e.AtCapacity() {
		return
	}
	if _, ok := e.reg.Get(target); !ok {
		target = e.activeID()
	}
	if target == "" {
		if active, err := e.host.QueryActive(ctx, e.focused); err == nil && active != nil {
			target = active.ID
		}
	}
	if target == "" {
		e.logger.Info("countdown expired with no tab to close")
		return
	}
	e.logger.Info("countdown expired", "target", target)
	e.close(ctx, "countdown", target)
}

func (e *Engine) activeID() tabs.ID {
	if t, ok := e.reg.ActiveTab(); ok {
		return t.ID
	}
	return ""
}
