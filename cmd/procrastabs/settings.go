package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/b/procrastabs/pkg/colors"
	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/store"
)

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Edit the settings interactively",
		Long: `Open an interactive editor for the settings the daemon enforces.

Keys:
  up/down, k/j   move
  space, enter   toggle a switch or edit a number
  esc            cancel an edit
  q, ctrl+c      quit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			lipgloss.SetHasDarkBackground(colors.DarkBackground(termenv.NewOutput(os.Stdout)))
			m, err := newSettingsModel(cmd.Context(), st, cfg.Engine())
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}

var settingsLabels = map[string]string{
	config.KeyMaxTabs:          "Maximum tabs",
	config.KeyMaxTabsEnabled:   "Limit tabs",
	config.KeyCountdown:        "Countdown (minutes)",
	config.KeyCountdownEnabled: "Countdown",
	config.KeyCloseDuplicates:  "Close duplicates",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50")).Bold(true)
	settingLabel = lipgloss.NewStyle().Width(22)
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "244", Dark: "241"}).MarginTop(1)
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50"))
)

type savedMsg struct {
	writes map[string]any
	err    error
}

type storeChangedMsg struct{}

type snapshotMsg struct {
	snap snapshot
	err  error
}

type settingsModel struct {
	ctx      context.Context
	st       store.Store
	defaults config.Engine
	snap     snapshot

	cursor  int
	editing bool
	input   textinput.Model

	message string
	failed  bool
}

func newSettingsModel(ctx context.Context, st store.Store, defaults config.Engine) (settingsModel, error) {
	snap, err := readSnapshot(ctx, st, defaults)
	if err != nil {
		return settingsModel{}, err
	}
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 8
	return settingsModel{ctx: ctx, st: st, defaults: defaults, snap: snap, input: input}, nil
}

func (m settingsModel) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange resolves once the store reports a change, so edits made
// elsewhere show up while the editor is open.
func (m settingsModel) waitForChange() tea.Cmd {
	ch := m.st.Changes()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m settingsModel) reload() tea.Cmd {
	return func() tea.Msg {
		snap, err := readSnapshot(m.ctx, m.st, m.defaults)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m settingsModel) save(writes map[string]any) tea.Cmd {
	return func() tea.Msg {
		return savedMsg{writes: writes, err: m.st.Set(m.ctx, writes)}
	}
}

func (m settingsModel) key() string {
	return config.Knobs[m.cursor]
}

func isToggle(key string) bool {
	return key != config.KeyMaxTabs && key != config.KeyCountdown
}

func (m settingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case storeChangedMsg:
		return m, tea.Batch(m.reload(), m.waitForChange())

	case snapshotMsg:
		if msg.err != nil {
			m.message, m.failed = msg.err.Error(), true
			return m, nil
		}
		m.snap = msg.snap
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.message, m.failed = fmt.Sprintf("save failed: %v", msg.err), true
			return m, m.reload()
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m settingsModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(config.Knobs)-1 {
			m.cursor++
		}
	case " ", "enter":
		key := m.key()
		if isToggle(key) {
			cur, _ := m.snap.Knobs.Value(key)
			return m.commit(key, !cur.(bool))
		}
		cur, _ := m.snap.Knobs.Value(key)
		m.editing = true
		m.input.SetValue(fmt.Sprint(cur))
		m.input.CursorEnd()
		m.message = ""
		return m, m.input.Focus()
	}
	return m, nil
}

func (m settingsModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		value, err := config.ParseValue(m.key(), m.input.Value())
		if err != nil {
			m.message, m.failed = err.Error(), true
			return m, nil
		}
		m.editing = false
		m.input.Blur()
		return m.commit(m.key(), value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// commit applies one edit locally and writes it; refused edits only
// update the message line.
func (m settingsModel) commit(key string, value any) (tea.Model, tea.Cmd) {
	next, writes, err := planChange(m.snap.Knobs, m.snap.OpenTabs, key, value)
	if err != nil {
		m.message, m.failed = err.Error(), true
		return m, nil
	}
	m.snap.Knobs = next
	m.message, m.failed = "", false
	if _, disabled := writes[config.KeyMaxTabsEnabled]; disabled && key == config.KeyMaxTabs {
		m.message = "Tab limit turned off: more tabs are open than the new maximum."
	}
	return m, m.save(writes)
}

func (m settingsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("procrastabs settings  (%d open)", m.snap.OpenTabs)))
	b.WriteString("\n")

	for i, key := range config.Knobs {
		pointer := "  "
		if i == m.cursor {
			pointer = cursorStyle.Render("> ")
		}
		b.WriteString(pointer)
		b.WriteString(settingLabel.Render(settingsLabels[key]))
		b.WriteString(m.renderValue(i, key))
		b.WriteString("\n")
	}

	if m.message != "" {
		style := savedStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.message) + "\n")
	}

	help := "space/enter toggle or edit, q quit"
	if m.editing {
		help = "enter save, esc cancel"
	}
	b.WriteString(helpStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

func (m settingsModel) renderValue(row int, key string) string {
	if m.editing && row == m.cursor {
		return m.input.View()
	}
	v, _ := m.snap.Knobs.Value(key)
	if on, ok := v.(bool); ok {
		if on {
			return onStyle.Render("[x] on")
		}
		return offStyle.Render("[ ] off")
	}
	return fmt.Sprint(v)
}
