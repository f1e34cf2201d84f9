package common

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	COLOR_GREY      = "241"
	COLOR_DARK_GREY = "238"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
	COLOR_BLUE      = "39"
	COLOR_GREEN     = "42"
	COLOR_RED       = "196"
	COLOR_PURPLE    = "#7D56F4"
)

var (
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Padding(0, 2)
	CaptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_MAGENTA)).Padding(1, 2)

	ItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	SelectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(lipgloss.Color(COLOR_GREEN)).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_GREY))

	EmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_DARK_GREY)).
			Italic(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_BLUE))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_RED))

	BadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_LIGHTBLUE))
)

func DefaultWindowWidth(width int) int {
	return width - 10
}

func DefaultWindowHeight(heigth int) int {
	return heigth - 10
}

// FormatCount renders a count, keeping unknown apart from zero.
func FormatCount(n *int, noun string) string {
	if n == nil {
		return "? " + noun
	}
	return humanize.Comma(int64(*n)) + " " + noun
}

// FormatWhen renders t relative to now, e.g. "in 3 days".
func FormatWhen(t time.Time) string {
	return humanize.Time(t)
}
