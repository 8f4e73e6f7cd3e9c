package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/b/procrastabs/pkg/badge"
	"github.com/b/procrastabs/pkg/countdown"
	"github.com/b/procrastabs/pkg/daemon"
	"github.com/b/procrastabs/pkg/engine"
)

var (
	statusWatch bool
	statusTmux  bool
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's current badge, tab count and countdown",
		Long: `Show what the daemon is enforcing right now.

Examples:
  procrastabs status            # One-shot summary
  procrastabs status --watch    # Follow changes as they happen
  procrastabs status --tmux     # Badge only, for a tmux status line`,
		RunE: runStatus,
	}
	cmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Follow status changes")
	cmd.Flags().BoolVar(&statusTmux, "tmux", false, "Print only the badge text in tmux format")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 2*time.Second)
	defer dialCancel()
	client, err := daemon.Dial(dialCtx, cfg.Socket.Session)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	if !statusWatch {
		reqCtx, reqCancel := context.WithTimeout(ctx, 2*time.Second)
		defer reqCancel()
		p, err := client.Status(reqCtx)
		if err != nil {
			return err
		}
		return printStatus(out, p.Status)
	}

	err = client.Subscribe(ctx, "", func(p daemon.StatusPayload) {
		if !jsonOutput && !statusTmux && useColor() {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		printStatus(out, p.Status)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printStatus(w io.Writer, s engine.Status) error {
	switch {
	case jsonOutput:
		return json.NewEncoder(w).Encode(s)
	case statusTmux:
		_, err := fmt.Fprintln(w, tmuxBadge(s.Badge))
		return err
	default:
		_, err := fmt.Fprintln(w, renderStatus(s, useColor()))
		return err
	}
}

func tmuxBadge(b badge.Badge) string {
	if b.Color == "" {
		return b.Text
	}
	return fmt.Sprintf("#[bg=%s,bold] %s #[default]", b.Color, b.Text)
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
)

func renderStatus(s engine.Status, color bool) string {
	label := func(t string) string {
		if color {
			return labelStyle.Render(t)
		}
		return fmt.Sprintf("%-12s", t)
	}

	chip := s.Badge.Text
	if color {
		chip = badge.Styled(s.Badge)
	}

	ceiling := "off"
	if s.MaxTabsEnabled {
		ceiling = fmt.Sprintf("%d", s.MaxTabs)
		if s.AtCapacity {
			ceiling += " (at capacity)"
		} else if s.Tabs > s.MaxTabs {
			ceiling += fmt.Sprintf(" (%d over)", s.Tabs-s.MaxTabs)
		}
	}

	cd := "off"
	if s.CountdownEnabled {
		cd = s.CountdownState
		if s.CountdownState == countdown.Running.String() {
			cd = fmt.Sprintf("%s, %s left", cd, countdown.FormatRemaining(s.Remaining))
			if color {
				cd = warnStyle.Render(cd)
			}
		}
	}

	dups := "keep"
	if s.CloseDuplicates {
		dups = "close"
	}

	focus := "none"
	if s.FocusedWindow >= 0 {
		focus = fmt.Sprintf("window %d", s.FocusedWindow)
	}

	lines := []string{
		label("badge") + chip,
		label("tabs") + fmt.Sprintf("%d", s.Tabs),
		label("ceiling") + ceiling,
		label("countdown") + cd,
		label("duplicates") + dups,
		label("focus") + focus,
	}
	return strings.Join(lines, "\n")
}
