package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/logging"
	"github.com/b/procrastabs/pkg/store"
)

var (
	cfgFile     string
	sessionName string
	jsonOutput  bool
	noColor     bool
)

var errPrivateStore = errors.New("the memory store lives inside the daemon; switch store.driver to file or sqlite")

var rootCmd = &cobra.Command{
	Use:   "procrastabs",
	Short: "Inspect and configure the browser tab ceiling",
	Long: `procrastabs caps how many browser tabs stay open and can close the focused
tab after a countdown once the cap is reached.

The daemon (procrastabs-daemon) does the enforcing. This command reads its
status and edits the settings it watches.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&sessionName, "session", "", "daemon session (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (machine-readable)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newStatusCmd(), newTabsCmd(), newGetCmd(), newSetCmd(), newSettingsCmd(), newInitCmd())
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if sessionName != "" {
		cfg.Socket.Session = sessionName
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return nil, errPrivateStore
	}
	return store.Open(cfg.Store.Driver, cfg.StorePath(), cfg.Store.PollInterval, cliLogger())
}

// cliLogger only surfaces warnings; the CLI talks through its output.
func cliLogger() *slog.Logger {
	if os.Getenv("PROCRASTABS_LOG_LEVEL") == "" {
		os.Setenv("PROCRASTABS_LOG_LEVEL", "warn")
	}
	return logging.New(os.Stderr)
}

// snapshot is what the CLI knows from the store alone.
type snapshot struct {
	Knobs    config.Engine
	OpenTabs int
	Stored   map[string]any
}

func readSnapshot(ctx context.Context, st store.Store, defaults config.Engine) (snapshot, error) {
	stored, err := st.Get(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("read store: %w", err)
	}
	knobs := defaults
	if err := knobs.Merge(stored); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return snapshot{Knobs: knobs, OpenTabs: openCount(stored), Stored: stored}, nil
}

// openCount reads the published tab count from either sync profile.
func openCount(stored map[string]any) int {
	if list, ok := stored[config.KeyTabs].([]any); ok {
		return len(list)
	}
	if n, ok := stored[config.KeyTabsCount].(float64); ok {
		return int(n)
	}
	return 0
}

func useColor() bool {
	return !noColor && os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}
