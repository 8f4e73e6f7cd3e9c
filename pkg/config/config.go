package config

import (
	"time"

	"github.com/b/procrastabs/pkg/paths"
)

type Config struct {
	Defaults  Defaults      `yaml:"defaults"`
	Badge     Badge         `yaml:"badge"`
	Sync      Sync          `yaml:"sync"`
	Store     Store         `yaml:"store"`
	Browser   Browser       `yaml:"browser"`
	Tmux      Tmux          `yaml:"tmux"`
	Heartbeat time.Duration `yaml:"heartbeat"` // Resume event interval (default: 20s)
	Socket    Socket        `yaml:"socket"`
}

// Defaults are the compiled-in knob values used when the store has none.
type Defaults struct {
	MaxTabs          int     `yaml:"max_tabs"`          // default: 10
	MaxTabsEnabled   bool    `yaml:"max_tabs_enabled"`
	CountdownMinutes float64 `yaml:"countdown_minutes"` // default: 5
	CountdownEnabled bool    `yaml:"countdown_enabled"`
	CloseDuplicates  bool    `yaml:"close_duplicates"`
}

type Badge struct {
	BaseColor      string `yaml:"base_color"`      // default: #4688f1
	CountdownColor string `yaml:"countdown_color"` // default: #e53935
	// ShowCountdown controls whether remaining time replaces the count.
	ShowCountdown *bool `yaml:"show_countdown"`
	// CountdownThreshold: remaining seconds under which the countdown shows (0 = always)
	CountdownThreshold int `yaml:"countdown_threshold_seconds"`
}

// CountdownVisible reports whether the badge shows remaining time at all.
func (b Badge) CountdownVisible() bool {
	return b.ShowCountdown == nil || *b.ShowCountdown
}

const (
	ProfileFull  = "full"  // publish the whole tab snapshot under "tabs"
	ProfileCount = "count" // publish only "tabsCount"
)

type Sync struct {
	Profile string `yaml:"profile"`
}

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Store struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // default: state dir store.yaml or store.db
	// PollInterval is how often the sqlite driver checks for external writes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Browser struct {
	ControlURL string        `yaml:"control_url"` // ws://... of a running browser; empty launches one
	Bin        string        `yaml:"bin"`
	Headless   bool          `yaml:"headless"`
	FocusPoll  time.Duration `yaml:"focus_poll"` // default: 1s
}

type Tmux struct {
	Enabled bool   `yaml:"enabled"`
	Option  string `yaml:"option"` // user option holding the styled badge (default: @procrastabs_badge)
}

type Socket struct {
	Session string `yaml:"session"`
}

// StorePath resolves the store location for the configured driver.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == DriverSQLite {
		return paths.StatePath("store.db")
	}
	return paths.StatePath("store.yaml")
}

func DefaultConfigPath() string {
	return paths.ConfigPath()
}
