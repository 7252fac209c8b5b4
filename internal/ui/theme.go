// Package ui holds the theme palette shared by board columns and the CLI's
// terminal output.
package ui

import (
	"fmt"
	"slices"
)

// ThemeColor is a named color of the workspace theme.
type ThemeColor string

const (
	Green     ThemeColor = "green"
	Turquoise ThemeColor = "turquoise"
	Sky       ThemeColor = "sky"
	Blue      ThemeColor = "blue"
	Purple    ThemeColor = "purple"
	Pink      ThemeColor = "pink"
	Red       ThemeColor = "red"
	Orange    ThemeColor = "orange"
	Yellow    ThemeColor = "yellow"
	Gray      ThemeColor = "gray"
)

// ThemeColors lists the palette in display order.
var ThemeColors = []ThemeColor{Green, Turquoise, Sky, Blue, Purple, Pink, Red, Orange, Yellow, Gray}

// ANSI256 codes per theme color.
var ansi = map[ThemeColor]int{
	Green:     71,
	Turquoise: 37,
	Sky:       117,
	Blue:      74,
	Purple:    141,
	Pink:      211,
	Red:       167,
	Orange:    215,
	Yellow:    221,
	Gray:      245,
}

const colorMuted = 245

var noColor bool

// IsThemeColor reports whether s names a palette color.
func IsThemeColor(s string) bool {
	return slices.Contains(ThemeColors, ThemeColor(s))
}

// Render returns s in the given theme color. Unknown colors and disabled
// color output return s unchanged.
func Render(c ThemeColor, s string) string {
	code, ok := ansi[c]
	if noColor || !ok {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return Render(Blue, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
