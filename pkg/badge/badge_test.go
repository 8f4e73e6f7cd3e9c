package badge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/tmux"
)

func opts() config.Badge {
	return config.Default().Badge
}

func TestRender_Text(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"at capacity", State{Count: 5, MaxTabsEnabled: true, MaxTabs: 5}, "0"},
		{"slack", State{Count: 3, MaxTabsEnabled: true, MaxTabs: 5}, "-2"},
		{"ceiling off", State{Count: 7, MaxTabs: 5}, "7"},
		{"over after lowering", State{Count: 8, MaxTabsEnabled: true, MaxTabs: 5}, "+3"},
		{"empty", State{}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Render(tt.state, opts())
			assert.Equal(t, tt.want, b.Text)
			assert.Equal(t, opts().BaseColor, b.Color)
			assert.False(t, b.Countdown)
		})
	}
}

func TestRender_Countdown(t *testing.T) {
	o := opts()
	s := State{Count: 5, MaxTabsEnabled: true, MaxTabs: 5, CountdownActive: true}

	s.Remaining = 45
	b := Render(s, o)
	assert.Equal(t, "45", b.Text)
	assert.Equal(t, o.CountdownColor, b.Color)
	assert.True(t, b.Countdown)

	s.Remaining = 150
	assert.Equal(t, "3m", Render(s, o).Text)
}

func TestRender_CountdownThreshold(t *testing.T) {
	o := opts()
	o.CountdownThreshold = 60
	s := State{Count: 5, MaxTabsEnabled: true, MaxTabs: 5, CountdownActive: true, Remaining: 90}

	assert.Equal(t, "0", Render(s, o).Text)
	s.Remaining = 60
	assert.Equal(t, "60", Render(s, o).Text)
}

func TestRender_CountdownHidden(t *testing.T) {
	o := opts()
	off := false
	o.ShowCountdown = &off
	s := State{Count: 5, MaxTabsEnabled: true, MaxTabs: 5, CountdownActive: true, Remaining: 10}

	b := Render(s, o)
	assert.Equal(t, "0", b.Text)
	assert.Equal(t, o.BaseColor, b.Color)
}

func TestPaint_Recorder(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, Paint(rec, Badge{Text: "-1", Color: "#000000"}))

	text, color := rec.Last()
	assert.Equal(t, "-1", text)
	assert.Equal(t, "#000000", color)
}

type failing struct{ err error }

func (f failing) SetText(string) error  { return f.err }
func (f failing) SetColor(string) error { return f.err }

func TestMulti_PaintsAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := &Recorder{}
	err := Paint(Multi{failing{boom}, rec}, Badge{Text: "3", Color: "#4688f1"})

	assert.ErrorIs(t, err, boom)
	text, _ := rec.Last()
	assert.Equal(t, "3", text)
}

func TestTmuxPainter_WritesStyledOption(t *testing.T) {
	var calls []string
	client := tmux.NewWithRunner(func(args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args, " "))
		return nil, nil
	})
	p := NewTmuxPainter(client, "@procrastabs_badge")

	require.NoError(t, Paint(p, Badge{Text: "0", Color: "#ffffff"}))
	assert.Equal(t, "#[fg=colour16,bg=colour231,bold] 0 #[default]", p.Format())
	assert.Contains(t, calls, "set-option -gq @procrastabs_badge #[fg=colour16,bg=colour231,bold] 0 #[default]")

	// repainting the same badge issues no commands
	n := len(calls)
	require.NoError(t, Paint(p, Badge{Text: "0", Color: "#ffffff"}))
	assert.Len(t, calls, n)
}

func TestStyled_ContainsText(t *testing.T) {
	assert.Contains(t, Styled(Badge{Text: "5m", Color: "#e53935"}), "5m")
}
