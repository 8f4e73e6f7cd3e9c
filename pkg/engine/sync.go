package engine

import (
	"context"

	"github.com/b/procrastabs/pkg/config"
)

// loadInitial merges stored knobs over the defaults. An unset maxTabs takes
// the current tab count so nothing is over the ceiling right away, and a
// restart that finds more tabs than allowed turns enforcement off instead of
// closing tabs.
func (e *Engine) loadInitial(stored map[string]any) config.Engine {
	cfg := e.cfg
	if err := cfg.Merge(stored); err != nil {
		e.logger.Warn("ignoring invalid stored settings", "error", err)
	}

	var probe config.Engine
	if _, err := probe.Apply(config.KeyMaxTabs, stored[config.KeyMaxTabs]); err != nil && e.reg.Len() > 0 {
		cfg.MaxTabs = e.reg.Len()
	} else if cfg.CountdownEnabled && e.reg.Len() > cfg.MaxTabs {
		e.logger.Warn("more tabs open than allowed, disabling ceiling and countdown",
			"tabs", e.reg.Len(), "max_tabs", cfg.MaxTabs)
		cfg.MaxTabsEnabled = false
		cfg.CountdownEnabled = false
	}
	return cfg
}

// publish writes the derived tab state unless an external change is being
// applied.
func (e *Engine) publish(ctx context.Context) {
	if e.bypass {
		e.logger.Debug("publish suppressed")
		return
	}
	values := map[string]any{}
	if e.profile == config.ProfileCount {
		values[config.KeyTabsCount] = e.reg.Len()
	} else {
		values[config.KeyTabs] = e.reg.Records()
	}
	if err := e.store.Set(ctx, values); err != nil {
		e.logger.Warn("publish failed", "error", err)
	}
}

func (e *Engine) publishConfig(ctx context.Context) {
	if e.bypass {
		return
	}
	if err := e.store.Set(ctx, e.cfg.Values()); err != nil {
		e.logger.Warn("config publish failed", "error", err)
	}
}

// onStoreChanged applies knob changes from any writer. Values equal to the
// live config, which includes the engine's own writes, are ignored.
func (e *Engine) onStoreChanged(ctx context.Context, ev StoreChanged) {
	e.bypass = true
	defer func() { e.bypass = false }()

	applied := false
	for _, key := range config.Knobs {
		c, ok := ev.Changes[key]
		if !ok || c.NewValue == nil {
			continue
		}
		if e.cfg.Matches(key, c.NewValue) {
			continue
		}
		prev := e.cfg
		if _, err := e.cfg.Apply(key, c.NewValue); err != nil {
			e.logger.Warn("invalid setting from store, keeping last known good",
				"key", key, "value", c.NewValue, "error", err)
			continue
		}
		e.logger.Info("setting changed", "key", key, "value", c.NewValue)
		e.react(ctx, key, prev)
		applied = true
	}
	if applied {
		e.paint()
	}
}

// react runs the downstream reaction for one changed knob.
func (e *Engine) react(ctx context.Context, key string, prev config.Engine) {
	switch key {
	case config.KeyMaxTabs, config.KeyMaxTabsEnabled, config.KeyCountdownEnabled:
		e.reconcile()
	case config.KeyCountdown:
		e.restartCountdown()
	case config.KeyCloseDuplicates:
		if !prev.CloseDuplicates && e.cfg.CloseDuplicates {
			if dups := e.reg.Sweep(); len(dups) > 0 {
				e.close(ctx, "duplicate_sweep", idsOf(dups)...)
			}
		}
	}
}
