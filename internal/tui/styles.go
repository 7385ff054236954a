package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent   = lipgloss.Color("#14B8A6") // teal
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#F59E0B")
	red      = lipgloss.Color("#EF4444")
	blue     = lipgloss.Color("#38BDF8")
	slate    = lipgloss.Color("#94A3B8")
	slateDim = lipgloss.Color("#64748B")
	line     = lipgloss.Color("#1F2937")
	ink      = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(1, 1)

	cleanStyle    = lipgloss.NewStyle().Bold(true).Foreground(green)
	findingsStyle = lipgloss.NewStyle().Bold(true).Foreground(red)
	failedStyle   = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	timeoutStyle  = lipgloss.NewStyle().Foreground(blue)
	idleStyle     = lipgloss.NewStyle().Foreground(slateDim)
	keyStyle      = lipgloss.NewStyle().Foreground(ink)
	dimStyle      = lipgloss.NewStyle().Foreground(slate)
)
