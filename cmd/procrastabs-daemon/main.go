package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/oklog/ulid/v2"

	"github.com/b/procrastabs/pkg/badge"
	"github.com/b/procrastabs/pkg/chrome"
	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/daemon"
	"github.com/b/procrastabs/pkg/engine"
	"github.com/b/procrastabs/pkg/logging"
	"github.com/b/procrastabs/pkg/paths"
	"github.com/b/procrastabs/pkg/store"
	"github.com/b/procrastabs/pkg/tmux"
)

var crashLog *log.Logger

func initCrashLog(sessionID string) {
	crashLogPath := paths.RuntimePath(sessionID, "crash.log")
	f, err := os.OpenFile(crashLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		crashLog = log.New(os.Stderr, "[CRASH] ", log.LstdFlags)
		return
	}
	crashLog = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
}

func logCrash(context string, r interface{}) {
	crashLog.Printf("=== CRASH in %s ===", context)
	crashLog.Printf("Panic: %v", r)
	crashLog.Printf("Stack trace:\n%s", debug.Stack())
	crashLog.Printf("=== END CRASH ===\n")
}

func recoverAndLog(context string) {
	if r := recover(); r != nil {
		logCrash(context, r)
	}
}

var (
	sessionID  = flag.String("session", "", "daemon session name (default: config socket.session)")
	configPath = flag.String("config", "", "config file (default: "+config.DefaultConfigPath()+")")
	controlURL = flag.String("control-url", "", "DevTools websocket of a running browser")
	storeFlag  = flag.String("store", "", "store driver override: file, sqlite or memory")
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logger := logging.SetDefault()
	if *debugMode {
		logging.SetLevel(slog.LevelDebug)
	}

	if *configPath == "" {
		*configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Error("config unreadable", "path", *configPath, "error", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	initCrashLog(cfg.Socket.Session)
	defer recoverAndLog("main")

	if err := run(cfg, logger); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			logger.Warn("not starting", "error", err)
			return
		}
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if *sessionID != "" {
		cfg.Socket.Session = *sessionID
	}
	if *controlURL != "" {
		cfg.Browser.ControlURL = *controlURL
	}
	if *storeFlag != "" {
		cfg.Store.Driver = *storeFlag
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	runID := ulid.Make().String()
	logger = logger.With("run_id", runID, "session", cfg.Socket.Session)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logging.WithRunID(ctx, runID)

	server := daemon.NewServer(cfg.Socket.Session, runID, logger)

	st, err := store.Open(cfg.Store.Driver, cfg.StorePath(), cfg.Store.PollInterval, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	host, err := chrome.Connect(ctx, chrome.Options{
		ControlURL: cfg.Browser.ControlURL,
		Bin:        cfg.Browser.Bin,
		Headless:   cfg.Browser.Headless,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer host.Shutdown()

	eng := engine.New(engine.Options{
		Host:     host,
		Store:    st,
		Painter:  painters(cfg, logger),
		Defaults: cfg.Engine(),
		Profile:  cfg.Sync.Profile,
		Logger:   logger,
		OnStatus: func(engine.Status) { server.BroadcastStatus() },
	})
	server.Status = eng.Status

	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	if err := eng.Init(ctx); err != nil {
		return err
	}
	logger.Info("daemon started", "pid", os.Getpid(), "store", cfg.Store.Driver)

	errCh := make(chan error, 2)
	go func() {
		defer recoverAndLog("engine")
		errCh <- eng.Run(ctx)
	}()
	go func() {
		defer recoverAndLog("browser-watch")
		errCh <- host.Watch(ctx, eng.Post, cfg.Browser.FocusPoll)
	}()
	go func() {
		defer recoverAndLog("config-watch")
		err := watchConfig(ctx, *configPath, logger, func(next *config.Config) {
			eng.Post(ctx, engine.BadgeReloaded{Badge: next.Badge})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()
	go func() {
		defer recoverAndLog("heartbeat")
		heartbeat(ctx, cfg.Heartbeat, eng, server, cancel, logger)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("shutting down", "error", err)
			cancel()
			return err
		}
	}
	logger.Info("daemon stopped")
	return nil
}

// heartbeat posts Resume on every interval and on SIGUSR1, and stops the
// daemon if another one claimed the pidfile.
func heartbeat(ctx context.Context, every time.Duration, eng *engine.Engine, server *daemon.Server, stop func(), logger *slog.Logger) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	myPid := os.Getpid()

	for {
		select {
		case <-ctx.Done():
			return
		case <-usr1:
			eng.Post(ctx, engine.Resume{})
		case <-ticker.C:
			eng.Post(ctx, engine.Resume{})
			if pid, ok := pidOwner(server); ok && pid != myPid {
				logger.Warn("pidfile taken over, shutting down", "ours", myPid, "new", pid)
				stop()
				return
			}
		}
	}
}

func pidOwner(server *daemon.Server) (int, bool) {
	data, err := os.ReadFile(server.PidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid, err == nil
}

// painters paints to tmux when enabled and to stdout when it is a terminal.
func painters(cfg *config.Config, logger *slog.Logger) badge.Painter {
	var out badge.Multi
	if cfg.Tmux.Enabled {
		if tmux.Available() {
			out = append(out, badge.NewTmuxPainter(tmux.New(), cfg.Tmux.Option))
		} else {
			logger.Warn("tmux badge enabled but no tmux server reachable")
		}
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = append(out, badge.NewTermPainter(os.Stdout))
	}
	if len(out) == 0 {
		return badge.NewTermPainter(io.Discard)
	}
	return out
}
