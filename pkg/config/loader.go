package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadOrDefault is LoadConfig, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// SaveConfig writes the config to the specified path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Defaults.MaxTabs <= 0 {
		cfg.Defaults.MaxTabs = 10
	}
	if cfg.Defaults.CountdownMinutes <= 0 {
		cfg.Defaults.CountdownMinutes = 5
	}
	if cfg.Badge.BaseColor == "" {
		cfg.Badge.BaseColor = "#4688f1"
	}
	if cfg.Badge.CountdownColor == "" {
		cfg.Badge.CountdownColor = "#e53935"
	}
	if cfg.Badge.CountdownThreshold < 0 {
		cfg.Badge.CountdownThreshold = 0
	}
	switch cfg.Sync.Profile {
	case ProfileFull, ProfileCount:
	default:
		cfg.Sync.Profile = ProfileFull
	}
	switch cfg.Store.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	default:
		cfg.Store.Driver = DriverFile
	}
	if cfg.Store.PollInterval <= 0 {
		cfg.Store.PollInterval = 500 * time.Millisecond
	}
	if cfg.Browser.FocusPoll <= 0 {
		cfg.Browser.FocusPoll = time.Second
	}
	if cfg.Tmux.Option == "" {
		cfg.Tmux.Option = "@procrastabs_badge"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 20 * time.Second
	}
	if cfg.Socket.Session == "" {
		cfg.Socket.Session = "default"
	}
}
