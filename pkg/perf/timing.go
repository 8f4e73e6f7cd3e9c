// Package perf records how long engine and browser operations take.
// Set PROCRASTABS_PERF=1 to append timings to perf.log in the state dir;
// PROCRASTABS_PERF_SLOW (a duration, e.g. "20ms") limits the log to
// operations at least that slow.
package perf

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/b/procrastabs/pkg/paths"
)

var (
	mu       sync.Mutex
	logger   *slog.Logger
	slow     time.Duration
	initOnce sync.Once
)

func open() {
	initOnce.Do(func() {
		if os.Getenv("PROCRASTABS_PERF") != "1" {
			return
		}
		if d, err := time.ParseDuration(os.Getenv("PROCRASTABS_PERF_SLOW")); err == nil {
			slow = d
		}
		dir, err := paths.EnsureStateDir()
		if err != nil {
			return
		}
		f, err := os.OpenFile(filepath.Join(dir, "perf.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		logger = slog.New(slog.NewJSONHandler(f, nil))
	})
}

// SetOutput sends timings to w regardless of the environment. A nil w turns
// recording off.
func SetOutput(w io.Writer, threshold time.Duration) {
	initOnce.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	slow = threshold
	if w == nil {
		logger = nil
		return
	}
	logger = slog.New(slog.NewJSONHandler(w, nil))
}

// Timer tracks elapsed time for a named operation
type Timer struct {
	name  string
	start time.Time
}

func Start(name string) *Timer {
	open()
	return &Timer{name: name, start: time.Now()}
}

// Stop returns the elapsed time and records it when at least the slow
// threshold.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	mu.Lock()
	defer mu.Unlock()
	if logger != nil && elapsed >= slow {
		logger.Info("timing", "op", t.name, "elapsed_ms", float64(elapsed.Microseconds())/1000)
	}
	return elapsed
}

// Track times fn and passes its error through.
func Track(name string, fn func() error) error {
	t := Start(name)
	defer t.Stop()
	return fn()
}
