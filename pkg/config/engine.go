package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Store keys shared with the settings surface.
const (
	KeyTabs             = "tabs"
	KeyTabsCount        = "tabsCount"
	KeyMaxTabs          = "maxTabs"
	KeyMaxTabsEnabled   = "maxTabsEnabled"
	KeyCountdown        = "countdown"
	KeyCountdownEnabled = "countdownEnabled"
	KeyCloseDuplicates  = "closeDuplicates"
)

// Knobs are the user-facing keys, in the order they are published.
var Knobs = []string{
	KeyMaxTabs,
	KeyMaxTabsEnabled,
	KeyCountdown,
	KeyCountdownEnabled,
	KeyCloseDuplicates,
}

// IsKnob reports whether key is one of the user-facing settings.
func IsKnob(key string) bool {
	for _, k := range Knobs {
		if k == key {
			return true
		}
	}
	return false
}

// Engine is the live configuration the enforcement engine runs on.
type Engine struct {
	MaxTabsEnabled   bool
	MaxTabs          int
	CountdownEnabled bool
	CountdownMinutes float64
	CloseDuplicates  bool
	Badge            Badge
}

// Engine returns the live configuration seeded from the file defaults.
func (c *Config) Engine() Engine {
	return Engine{
		MaxTabsEnabled:   c.Defaults.MaxTabsEnabled,
		MaxTabs:          c.Defaults.MaxTabs,
		CountdownEnabled: c.Defaults.CountdownEnabled,
		CountdownMinutes: c.Defaults.CountdownMinutes,
		CloseDuplicates:  c.Defaults.CloseDuplicates,
		Badge:            c.Badge,
	}
}

// CountdownSeconds is the countdown duration in whole seconds, at least 1.
func (e Engine) CountdownSeconds() int {
	s := int(math.Round(e.CountdownMinutes * 60))
	if s < 1 {
		return 1
	}
	return s
}

// Value returns the current value of a knob.
func (e Engine) Value(key string) (any, bool) {
	switch key {
	case KeyMaxTabs:
		return e.MaxTabs, true
	case KeyMaxTabsEnabled:
		return e.MaxTabsEnabled, true
	case KeyCountdown:
		return e.CountdownMinutes, true
	case KeyCountdownEnabled:
		return e.CountdownEnabled, true
	case KeyCloseDuplicates:
		return e.CloseDuplicates, true
	}
	return nil, false
}

// Values returns every knob keyed by its store key.
func (e Engine) Values() map[string]any {
	out := make(map[string]any, len(Knobs))
	for _, k := range Knobs {
		v, _ := e.Value(k)
		out[k] = v
	}
	return out
}

// Matches reports whether value, once coerced, equals the live value of key.
// Values that cannot be coerced never match.
func (e Engine) Matches(key string, value any) bool {
	cur, ok := e.Value(key)
	if !ok {
		return false
	}
	next := e
	if _, err := next.Apply(key, value); err != nil {
		return false
	}
	v, _ := next.Value(key)
	return v == cur
}

// Apply validates value and stores it under key. Invalid values leave the
// previous value in place and return ErrInvalidValue. It reports whether the
// live value changed.
func (e *Engine) Apply(key string, value any) (bool, error) {
	switch key {
	case KeyMaxTabs:
		n, ok := toInt(value)
		if !ok || n <= 0 {
			return false, fmt.Errorf("%s=%v: %w", key, value, ErrInvalidValue)
		}
		changed := e.MaxTabs != n
		e.MaxTabs = n
		return changed, nil
	case KeyCountdown:
		f, ok := toFloat(value)
		if !ok || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return false, fmt.Errorf("%s=%v: %w", key, value, ErrInvalidValue)
		}
		changed := e.CountdownMinutes != f
		e.CountdownMinutes = f
		return changed, nil
	case KeyMaxTabsEnabled, KeyCountdownEnabled, KeyCloseDuplicates:
		b, ok := value.(bool)
		if !ok {
			return false, fmt.Errorf("%s=%v: %w", key, value, ErrInvalidValue)
		}
		field := e.boolField(key)
		changed := *field != b
		*field = b
		return changed, nil
	}
	return false, fmt.Errorf("%q: %w", key, ErrUnknownKey)
}

// Merge applies every knob present in stored. Invalid values are skipped and
// reported together; valid ones are still applied.
func (e *Engine) Merge(stored map[string]any) error {
	var errs []string
	for _, k := range Knobs {
		v, ok := stored[k]
		if !ok || v == nil {
			continue
		}
		if _, err := e.Apply(k, v); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidValue, strings.Join(errs, "; "))
	}
	return nil
}

func (e *Engine) boolField(key string) *bool {
	switch key {
	case KeyMaxTabsEnabled:
		return &e.MaxTabsEnabled
	case KeyCountdownEnabled:
		return &e.CountdownEnabled
	default:
		return &e.CloseDuplicates
	}
}

// ParseValue converts command-line text into the typed value for key.
func ParseValue(key, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch key {
	case KeyMaxTabs:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s=%q: %w", key, text, ErrInvalidValue)
		}
		return n, nil
	case KeyCountdown:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%s=%q: %w", key, text, ErrInvalidValue)
		}
		return f, nil
	case KeyMaxTabsEnabled, KeyCountdownEnabled, KeyCloseDuplicates:
		switch strings.ToLower(text) {
		case "true", "on", "yes", "1":
			return true, nil
		case "false", "off", "no", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%s=%q: %w", key, text, ErrInvalidValue)
	}
	return nil, fmt.Errorf("%q: %w", key, ErrUnknownKey)
}

// toInt accepts the numeric shapes store backends decode to.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
