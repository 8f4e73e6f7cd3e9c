package colors

import (
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// DarkBackground guesses whether the terminal has a dark background.
// COLORFGBG wins when set; otherwise termenv queries the terminal. Unknown
// means dark.
func DarkBackground(out *termenv.Output) bool {
	if isDark, ok := checkCOLORFGBG(os.Getenv("COLORFGBG")); ok {
		return isDark
	}
	if out == nil {
		return true
	}
	// tmux and screen don't answer OSC queries
	if _, ok := out.BackgroundColor().(termenv.NoColor); ok {
		return true
	}
	return out.HasDarkBackground()
}

// checkCOLORFGBG parses "fg;bg" where bg 0-7 are dark, 8-15 are light.
func checkCOLORFGBG(v string) (bool, bool) {
	if v == "" {
		return false, false
	}
	parts := strings.Split(v, ";")
	if len(parts) < 2 {
		return false, false
	}
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false, false
	}
	return bg < 8 || bg == 16, true
}
