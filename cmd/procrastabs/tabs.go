package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/b/procrastabs/pkg/colors"
	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/grouping"
	"github.com/b/procrastabs/pkg/store"
	"github.com/b/procrastabs/pkg/tabs"
)

var tabsGroup string

func newTabsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List the tabs the daemon last published",
		Long: `List the published tab snapshot with the time each tab has been focused.

Needs sync.profile "full"; the "count" profile only publishes a number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := grouping.Mode(tabsGroup)
			if mode != grouping.ByWindow && mode != grouping.ByHost {
				return fmt.Errorf("invalid --group %q: must be window or host", tabsGroup)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stored, err := st.Get(cmd.Context(), config.KeyTabs, config.KeyTabsCount)
			if err != nil {
				return err
			}
			var records []tabs.Record
			if v, ok := stored[config.KeyTabs]; ok {
				if err := store.Decode(v, &records); err != nil {
					return fmt.Errorf("tab snapshot unreadable: %w", err)
				}
			} else if n, ok := stored[config.KeyTabsCount]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%v tabs open (count profile, no details)\n", n)
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			groups := grouping.GroupTabs(records, mode, cfg.Badge.BaseColor)
			renderTabs(cmd.OutOrStdout(), groups, time.Now(), terminalWidth(), useColor())
			return nil
		},
	}
	cmd.Flags().StringVarP(&tabsGroup, "group", "g", string(grouping.ByWindow), "Group by window or host")
	return cmd
}

func renderTabs(w io.Writer, groups []grouping.GroupedTabs, now time.Time, width int, color bool) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "no tabs published yet")
		return
	}
	const timeCol = 9
	titleWidth := width - timeCol - 6
	if titleWidth < 10 {
		titleWidth = 10
	}

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := fmt.Sprintf("%s (%d)", g.Name, len(g.Tabs))
		if color {
			header = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Foreground(lipgloss.Color(colors.TextColor(g.Color))).
				Background(lipgloss.Color(g.Color)).
				Render(header)
		}
		fmt.Fprintln(w, header)

		for _, rec := range g.Tabs {
			t := rec.Tab()
			marker := " "
			if t.Active() {
				marker = "*"
			}
			title := t.Title
			if title == "" {
				title = t.URL
			}
			title = runewidth.FillRight(runewidth.Truncate(title, titleWidth, "…"), titleWidth)
			fmt.Fprintf(w, " %s %s %*s\n", marker, title, timeCol, formatActive(t.ActiveFor(now)))
		}
	}
}

func formatActive(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
