package colors

import (
	"math"
	"testing"
)

func TestGetLuminance(t *testing.T) {
	tests := []struct {
		name     string
		hexColor string
		want     float64
		delta    float64
	}{
		{"black", "#000000", 0.0, 0.001},
		{"white", "#ffffff", 1.0, 0.001},
		{"mid gray", "#808080", 0.2159, 0.01},
		{"pure red", "#ff0000", 0.2126, 0.01},
		{"invalid", "nope", 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetLuminance(tt.hexColor)
			if math.Abs(got-tt.want) > tt.delta {
				t.Errorf("GetLuminance(%q) = %v, want %v (delta %v)", tt.hexColor, got, tt.want, tt.delta)
			}
		})
	}
}

func TestGetContrastRatio(t *testing.T) {
	if got := GetContrastRatio("#000000", "#ffffff"); math.Abs(got-21) > 0.1 {
		t.Errorf("black on white = %v, want 21", got)
	}
	if got := GetContrastRatio("#808080", "#808080"); math.Abs(got-1) > 0.01 {
		t.Errorf("same colour = %v, want 1", got)
	}
}

func TestTextColor(t *testing.T) {
	tests := []struct {
		bg   string
		want string
	}{
		{"#000000", "#ffffff"},
		{"#ffffff", "#000000"},
		{"#e53935", "#000000"},
		{"#1a1a2e", "#ffffff"},
		{"#f0f0d0", "#000000"},
	}
	for _, tt := range tests {
		if got := TextColor(tt.bg); got != tt.want {
			t.Errorf("TextColor(%q) = %q, want %q", tt.bg, got, tt.want)
		}
	}
}

func TestHexToTmuxColor(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#000000", "colour16"},
		{"#ffffff", "colour231"},
		{"#ff0000", "colour196"},
		{"bad", "colour0"},
	}
	for _, tt := range tests {
		if got := HexToTmuxColor(tt.hex); got != tt.want {
			t.Errorf("HexToTmuxColor(%q) = %q, want %q", tt.hex, got, tt.want)
		}
	}
}

func TestAdjust(t *testing.T) {
	if got := Adjust("#808080", 0.5); got != "#ffffff" {
		t.Errorf("Adjust lighten = %q", got)
	}
	if got := Adjust("#101010", -0.5); got != "#000000" {
		t.Errorf("Adjust darken = %q", got)
	}
	if got := Adjust("xyz", 0.1); got != "xyz" {
		t.Errorf("Adjust invalid = %q", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid("#4688f1") || Valid("#12") || Valid("#gggggg") {
		t.Error("Valid() misclassified input")
	}
}

func TestCheckCOLORFGBG(t *testing.T) {
	tests := []struct {
		v      string
		dark   bool
		parsed bool
	}{
		{"15;0", true, true},
		{"0;15", false, true},
		{"0;default;7", true, true},
		{"", false, false},
		{"garbage", false, false},
	}
	for _, tt := range tests {
		dark, ok := checkCOLORFGBG(tt.v)
		if dark != tt.dark || ok != tt.parsed {
			t.Errorf("checkCOLORFGBG(%q) = %v, %v; want %v, %v", tt.v, dark, ok, tt.dark, tt.parsed)
		}
	}
}
