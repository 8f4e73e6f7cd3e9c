// Package badge derives the toolbar badge from engine state and paints it.
package badge

import (
	"strconv"

	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/countdown"
)

// State is everything the badge depends on.
type State struct {
	Count           int
	MaxTabsEnabled  bool
	MaxTabs         int
	CountdownActive bool
	Remaining       int // seconds left on the countdown
}

// Badge is the text and colour shown on the toolbar icon.
type Badge struct {
	Text      string `json:"text"`
	Color     string `json:"color"`
	Countdown bool   `json:"countdown"` // text shows remaining time
}

// Render derives the badge. With the ceiling on the text is the slack ("-2"),
// "0" at capacity, or the overflow ("+1") after the ceiling was lowered
// under the open count. With it off the text is the tab count. A countdown
// within its display threshold overrides both text and colour.
func Render(s State, opts config.Badge) Badge {
	b := Badge{Color: opts.BaseColor}
	if s.MaxTabsEnabled {
		switch slack := s.MaxTabs - s.Count; {
		case slack > 0:
			b.Text = "-" + strconv.Itoa(slack)
		case slack == 0:
			b.Text = "0"
		default:
			b.Text = "+" + strconv.Itoa(-slack)
		}
	} else {
		b.Text = strconv.Itoa(s.Count)
	}

	if s.CountdownActive && ShowsCountdown(s.Remaining, opts) {
		b.Text = countdown.FormatRemaining(s.Remaining)
		b.Color = opts.CountdownColor
		b.Countdown = true
	}
	return b
}

// ShowsCountdown reports whether remaining seconds fall inside the display
// threshold. A zero threshold shows the whole countdown.
func ShowsCountdown(remaining int, opts config.Badge) bool {
	if !opts.CountdownVisible() || remaining <= 0 {
		return false
	}
	return opts.CountdownThreshold == 0 || remaining <= opts.CountdownThreshold
}
