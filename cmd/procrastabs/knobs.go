package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/store"
)

// needToCloseError refuses turning the ceiling on below the open count.
type needToCloseError struct {
	Extra int
}

func (e needToCloseError) Error() string {
	unit := "tab"
	if e.Extra > 1 {
		unit = "tabs"
	}
	return fmt.Sprintf("You need to close %d %s.", e.Extra, unit)
}

// planChange validates one knob edit against the open tab count and returns
// the updated knobs plus every store write the edit implies.
func planChange(cur config.Engine, openTabs int, key string, value any) (config.Engine, map[string]any, error) {
	next := cur
	if _, err := next.Apply(key, value); err != nil {
		return cur, nil, err
	}
	writes := map[string]any{}
	v, _ := next.Value(key)
	writes[key] = v

	switch key {
	case config.KeyMaxTabs:
		if next.MaxTabs < openTabs && next.MaxTabsEnabled {
			next.MaxTabsEnabled = false
			writes[config.KeyMaxTabsEnabled] = false
		}
	case config.KeyMaxTabsEnabled:
		if next.MaxTabsEnabled && next.MaxTabs < openTabs {
			return cur, nil, needToCloseError{Extra: openTabs - next.MaxTabs}
		}
	}
	return next, writes, nil
}

func applySet(ctx context.Context, st store.Store, defaults config.Engine, key, text string) (map[string]any, error) {
	if !config.IsKnob(key) {
		return nil, fmt.Errorf("%q: %w", key, config.ErrUnknownKey)
	}
	value, err := config.ParseValue(key, text)
	if err != nil {
		return nil, err
	}
	snap, err := readSnapshot(ctx, st, defaults)
	if err != nil {
		return nil, err
	}
	_, writes, err := planChange(snap.Knobs, snap.OpenTabs, key, value)
	if err != nil {
		return nil, err
	}
	if err := st.Set(ctx, writes); err != nil {
		return nil, fmt.Errorf("write store: %w", err)
	}
	return writes, nil
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print the live settings",
		Long: `Print the settings the daemon enforces, as stored.

Keys: maxTabs, maxTabsEnabled, countdown (minutes), countdownEnabled, closeDuplicates`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.Knobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := readSnapshot(cmd.Context(), st, cfg.Engine())
			if err != nil {
				return err
			}
			values := snap.Knobs.Values()
			if len(args) == 1 {
				v, ok := snap.Knobs.Value(args[0])
				if !ok {
					return fmt.Errorf("%q: %w", args[0], config.ErrUnknownKey)
				}
				values = map[string]any{args[0]: v}
			}
			return printValues(cmd, values)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Long: `Change a setting. The daemon picks it up from the store.

Examples:
  procrastabs set maxTabs 8
  procrastabs set maxTabsEnabled true
  procrastabs set countdown 2.5`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Knobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			writes, err := applySet(cmd.Context(), st, cfg.Engine(), args[0], args[1])
			if err != nil {
				return err
			}
			return printValues(cmd, writes)
		},
	}
}

func printValues(cmd *cobra.Command, values map[string]any) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(values)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s=%v\n", k, values[k])
	}
	return nil
}
