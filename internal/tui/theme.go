// Package tui implements the live job monitor behind "slate job watch".
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/slate/internal/jobs"
)

// Theme holds every style the monitor renders with.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusQueued  lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

var (
	colorDone    = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#7BD88F"}
	colorRunning = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFD866"}
	colorFailed  = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6188"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#939293"}
	colorFaint   = lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#403E41"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#78DCE8"}
)

// NewDefaultTheme adapts to light and dark terminal backgrounds.
func NewDefaultTheme() Theme {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	return Theme{
		StatusOK:      fg(colorDone),
		StatusRunning: fg(colorRunning),
		StatusFailed:  fg(colorFailed),
		StatusQueued:  fg(colorMuted),

		Border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent),
		Title:     lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Dim:       fg(colorMuted),
		Highlight: fg(colorAccent),

		TickerActive:   fg(colorDone),
		TickerInactive: fg(colorFaint),
	}
}

var statusGlyphs = map[jobs.Status]string{
	jobs.StatusQueued:  "○",
	jobs.StatusRunning: "◐",
	jobs.StatusDone:    "●",
	jobs.StatusFailed:  "✕",
}

// Glyph renders the status marker used in the job table.
func (t Theme) Glyph(status string) string {
	s := jobs.Status(status)
	g, ok := statusGlyphs[s]
	if !ok {
		return "?"
	}
	return t.statusStyle(s).Render(g)
}

func (t Theme) statusStyle(s jobs.Status) lipgloss.Style {
	switch s {
	case jobs.StatusRunning:
		return t.StatusRunning
	case jobs.StatusDone:
		return t.StatusOK
	case jobs.StatusFailed:
		return t.StatusFailed
	default:
		return t.StatusQueued
	}
}
