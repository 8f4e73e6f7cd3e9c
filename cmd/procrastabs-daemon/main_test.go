package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/b/procrastabs/pkg/config"
)

func TestWatchConfigReloadsBadge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("badge:\n  base_color: \"#111111\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan *config.Config, 4)
	go watchConfig(ctx, path, slog.Default(), func(c *config.Config) { got <- c })

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("badge:\n  base_color: \"#222222\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Badge.BaseColor != "#222222" {
			t.Fatalf("expected reloaded color #222222, got %s", cfg.Badge.BaseColor)
		}
	case <-ctx.Done():
		t.Fatal("config change not observed")
	}
}

func TestWatchConfigIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := make(chan *config.Config, 1)
	go watchConfig(ctx, path, slog.Default(), func(c *config.Config) { got <- c })

	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644)

	select {
	case <-got:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	*sessionID, *controlURL, *storeFlag = "work", "ws://127.0.0.1:9222/devtools/browser/x", config.DriverSQLite
	defer func() { *sessionID, *controlURL, *storeFlag = "", "", "" }()

	applyFlags(cfg)
	if cfg.Socket.Session != "work" || cfg.Store.Driver != config.DriverSQLite || cfg.Browser.ControlURL == "" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}
