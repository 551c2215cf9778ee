package ui

import "github.com/charmbracelet/lipgloss"

// Adaptive colors pick the light variant on light terminal backgrounds.
var (
	accent = lipgloss.AdaptiveColor{Light: "#5A3FD0", Dark: "#7D56F4"}
	green  = lipgloss.AdaptiveColor{Light: "#02874F", Dark: "#04B575"}
	red    = lipgloss.AdaptiveColor{Light: "#C40000", Dark: "#FF4B4B"}
	amber  = lipgloss.AdaptiveColor{Light: "#B36B00", Dark: "#FFA500"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"}
)

type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	code  lipgloss.Style
	box   lipgloss.Style
}

var styles = newPalette()

func newPalette() palette {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return palette{
		title: fg(accent).Bold(true).MarginBottom(1),
		ok:    fg(green).Bold(true),
		err:   fg(red).Bold(true),
		warn:  fg(amber),
		help:  fg(muted).Italic(true),
		code:  fg(accent).Bold(true).Padding(0, 2),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
	}
}
