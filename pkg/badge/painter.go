package badge

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/b/procrastabs/pkg/colors"
	"github.com/b/procrastabs/pkg/tmux"
)

// Painter is the badge paint collaborator.
type Painter interface {
	SetText(text string) error
	SetColor(color string) error
}

// Paint sets text then colour.
func Paint(p Painter, b Badge) error {
	return errors.Join(p.SetText(b.Text), p.SetColor(b.Color))
}

// Styled renders a badge as a coloured terminal chip.
func Styled(b Badge) string {
	fg := "#ffffff"
	if colors.Valid(b.Color) {
		fg = colors.TextColor(b.Color)
	}
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color(fg)).
		Background(lipgloss.Color(b.Color)).
		Render(b.Text)
}

// TmuxPainter publishes the badge as a styled tmux user option, so a status
// line can show it with #{@procrastabs_badge}.
type TmuxPainter struct {
	client *tmux.Client
	option string

	mu    sync.Mutex
	text  string
	color string
	last  string
}

func NewTmuxPainter(client *tmux.Client, option string) *TmuxPainter {
	return &TmuxPainter{client: client, option: option}
}

func (p *TmuxPainter) SetText(text string) error {
	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
	return p.flush()
}

func (p *TmuxPainter) SetColor(color string) error {
	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
	return p.flush()
}

// Format returns the tmux format string for the current badge.
func (p *TmuxPainter) Format() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format()
}

func (p *TmuxPainter) format() string {
	if p.color == "" {
		return " " + tmux.EscapeFormat(p.text) + " "
	}
	return fmt.Sprintf("#[fg=%s,bg=%s,bold] %s #[default]",
		colors.HexToTmuxColor(colors.TextColor(p.color)),
		colors.HexToTmuxColor(p.color),
		tmux.EscapeFormat(p.text))
}

func (p *TmuxPainter) flush() error {
	p.mu.Lock()
	value := p.format()
	if value == p.last {
		p.mu.Unlock()
		return nil
	}
	p.last = value
	p.mu.Unlock()

	if err := p.client.SetOption(p.option, value); err != nil {
		return err
	}
	return p.client.RefreshStatus()
}

// TermPainter redraws the badge in place on a terminal line.
type TermPainter struct {
	w   io.Writer
	out *termenv.Output

	mu    sync.Mutex
	badge Badge
}

func NewTermPainter(w io.Writer) *TermPainter {
	return &TermPainter{w: w, out: termenv.NewOutput(w)}
}

func (p *TermPainter) SetText(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badge.Text = text
	return p.draw()
}

func (p *TermPainter) SetColor(color string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badge.Color = color
	return p.draw()
}

func (p *TermPainter) draw() error {
	p.out.ClearLine()
	_, err := fmt.Fprintf(p.w, "\r%s", Styled(p.badge))
	return err
}

// Multi paints to every painter, collecting errors.
type Multi []Painter

func (m Multi) SetText(text string) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.SetText(text))
	}
	return errors.Join(errs...)
}

func (m Multi) SetColor(color string) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.SetColor(color))
	}
	return errors.Join(errs...)
}

// Recorder keeps every paint call. Useful as a stand-in painter.
type Recorder struct {
	mu     sync.Mutex
	Texts  []string
	Colors []string
}

func (r *Recorder) SetText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Texts = append(r.Texts, text)
	return nil
}

func (r *Recorder) SetColor(color string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Colors = append(r.Colors, color)
	return nil
}

// Last returns the most recent text and colour.
func (r *Recorder) Last() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var text, color string
	if n := len(r.Texts); n > 0 {
		text = r.Texts[n-1]
	}
	if n := len(r.Colors); n > 0 {
		color = r.Colors[n-1]
	}
	return text, color
}
