// Package colors converts badge colours between hex, tmux and terminal forms
// and picks readable text colours for them.
package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Valid reports whether hex is a #rrggbb colour.
func Valid(hex string) bool {
	r, _, _ := hexToRGB(hex)
	return r >= 0
}

func HexToTmuxColor(hex string) string {
	r, g, b := hexToRGB(hex)
	if r < 0 {
		return "colour0"
	}

	r6 := int(r * 6 / 256)
	g6 := int(g * 6 / 256)
	b6 := int(b * 6 / 256)
	colorNum := 16 + 36*r6 + 6*g6 + b6
	return fmt.Sprintf("colour%d", colorNum)
}

// GetLuminance calculates the relative luminance of a color per WCAG formula
// Returns a value between 0 (black) and 1 (white)
func GetLuminance(hexColor string) float64 {
	r, g, b := hexToRGB(hexColor)
	if r < 0 {
		return 0
	}
	return 0.2126*gammaSRGB(float64(r)/255.0) +
		0.7152*gammaSRGB(float64(g)/255.0) +
		0.0722*gammaSRGB(float64(b)/255.0)
}

func gammaSRGB(val float64) float64 {
	if val <= 0.03928 {
		return val / 12.92
	}
	return math.Pow((val+0.055)/1.055, 2.4)
}

// GetContrastRatio calculates the WCAG contrast ratio between two colors
// Returns a value between 1 (no contrast) and 21 (maximum contrast)
func GetContrastRatio(fg, bg string) float64 {
	l1 := GetLuminance(fg)
	l2 := GetLuminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// TextColor returns black or white, whichever reads better on bg.
func TextColor(bg string) string {
	if GetContrastRatio("#000000", bg) >= GetContrastRatio("#ffffff", bg) {
		return "#000000"
	}
	return "#ffffff"
}

// Adjust shifts every channel by amount*255, clamped. Negative darkens.
func Adjust(hex string, amount float64) string {
	r, g, b := hexToRGB(hex)
	if r < 0 {
		return hex
	}
	shift := func(v int64) int64 {
		return int64(math.Max(0, math.Min(255, float64(v)+255.0*amount)))
	}
	return fmt.Sprintf("#%02x%02x%02x", shift(r), shift(g), shift(b))
}

// hexToRGB returns -1, -1, -1 for invalid colors
func hexToRGB(hexColor string) (int64, int64, int64) {
	hex := strings.TrimPrefix(hexColor, "#")
	if len(hex) != 6 {
		return -1, -1, -1
	}

	r, errR := strconv.ParseInt(hex[0:2], 16, 64)
	g, errG := strconv.ParseInt(hex[2:4], 16, 64)
	b, errB := strconv.ParseInt(hex[4:6], 16, 64)

	if errR != nil || errG != nil || errB != nil {
		return -1, -1, -1
	}

	return r, g, b
}
