// Package paths locates procrastabs files on disk.
//
//	config.yaml  PROCRASTABS_CONFIG_DIR, else $XDG_CONFIG_HOME/procrastabs, else ~/.config/procrastabs
//	store files  PROCRASTABS_STATE_DIR, else $XDG_STATE_HOME/procrastabs, else ~/.local/state/procrastabs
//	socket, pid  PROCRASTABS_RUNTIME_DIR, else $XDG_RUNTIME_DIR, else the temp dir
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const app = "procrastabs"

// location is a directory resolved once from an override, an XDG base and
// a fallback under the home directory.
type location struct {
	override string
	xdg      string
	home     []string

	once sync.Once
	dir  string
}

func (l *location) resolve() string {
	l.once.Do(func() {
		switch {
		case os.Getenv(l.override) != "":
			l.dir = os.Getenv(l.override)
		case os.Getenv(l.xdg) != "":
			l.dir = filepath.Join(os.Getenv(l.xdg), app)
		default:
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			l.dir = filepath.Join(append([]string{home}, l.home...)...)
		}
	})
	return l.dir
}

func (l *location) ensure() (string, error) {
	dir := l.resolve()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

var (
	configLoc = &location{override: "PROCRASTABS_CONFIG_DIR", xdg: "XDG_CONFIG_HOME", home: []string{".config", app}}
	stateLoc  = &location{override: "PROCRASTABS_STATE_DIR", xdg: "XDG_STATE_HOME", home: []string{".local", "state", app}}
)

func ConfigDir() string { return configLoc.resolve() }

func StateDir() string { return stateLoc.resolve() }

// ConfigPath is the config file the daemon and CLI read by default.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StatePath names a file in the state dir, e.g. the file or sqlite store.
func StatePath(filename string) string {
	return filepath.Join(StateDir(), filename)
}

// RuntimePath returns a per-session runtime file such as the daemon socket.
// It is resolved on every call so a test can point it at its own dir.
func RuntimePath(session, suffix string) string {
	if session == "" {
		session = "default"
	}
	dir := os.Getenv("PROCRASTABS_RUNTIME_DIR")
	if dir == "" {
		dir = os.Getenv("XDG_RUNTIME_DIR")
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", app, session, suffix))
}

// EnsureConfigDir creates the config dir if needed and returns it.
func EnsureConfigDir() (string, error) { return configLoc.ensure() }

// EnsureStateDir creates the state dir if needed and returns it.
func EnsureStateDir() (string, error) { return stateLoc.ensure() }

// ResetForTest forgets resolved directories. Only use in tests.
func ResetForTest() {
	for _, l := range []*location{configLoc, stateLoc} {
		l.once = sync.Once{}
		l.dir = ""
	}
}
