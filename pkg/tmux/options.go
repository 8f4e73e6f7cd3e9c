package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ansiEscapeRegex matches ANSI escape sequences
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?(?:\x07|\x1b\\)`)

// stripANSI removes ANSI escape sequences from a string
func stripANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// Runner executes one tmux command and returns its stdout.
type Runner func(args ...string) ([]byte, error)

func execRunner(args ...string) ([]byte, error) {
	return exec.Command("tmux", args...).Output()
}

// Client issues tmux commands against the default server.
type Client struct {
	run Runner
}

func New() *Client {
	return &Client{run: execRunner}
}

// NewWithRunner is New with a replaceable command runner.
func NewWithRunner(run Runner) *Client {
	return &Client{run: run}
}

// Available reports whether a tmux server is reachable from this process.
func Available() bool {
	if os.Getenv("TMUX") != "" {
		return true
	}
	if _, err := exec.LookPath("tmux"); err != nil {
		return false
	}
	return exec.Command("tmux", "has-session").Run() == nil
}

// SetOption sets a global option, typically a user option like @name.
func (c *Client) SetOption(name, value string) error {
	if _, err := c.run("set-option", "-gq", name, value); err != nil {
		return fmt.Errorf("tmux set-option %s failed: %w", name, err)
	}
	return nil
}

// ShowOption returns a global option's value, "" when unset.
func (c *Client) ShowOption(name string) (string, error) {
	out, err := c.run("show-option", "-gqv", name)
	if err != nil {
		return "", fmt.Errorf("tmux show-option %s failed: %w", name, err)
	}
	return stripANSI(strings.TrimSpace(string(out))), nil
}

// RefreshStatus redraws every client's status line.
func (c *Client) RefreshStatus() error {
	if _, err := c.run("refresh-client", "-S"); err != nil {
		return fmt.Errorf("tmux refresh-client failed: %w", err)
	}
	return nil
}

// EscapeFormat makes text safe inside a tmux format string.
func EscapeFormat(text string) string {
	return strings.ReplaceAll(text, "#", "##")
}
