// Package tui implements the interactive reviewer: a terminal comparison
// of one candidate school against a matched district, with keyboard-driven
// decisions.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the review screen.
type Styles struct {
	Header   lipgloss.Style
	Subtle   lipgloss.Style
	Cell     lipgloss.Style
	AttrName lipgloss.Style
	Cursor   lipgloss.Style
	Help     lipgloss.Style

	Exact     lipgloss.Style
	Indicator lipgloss.Style
	Related   lipgloss.Style
	None      lipgloss.Style
}

// DefaultStyles returns the standard color scheme: match strength reads
// from green (exact) through yellow (indicator) and blue (related) to dim
// (none).
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Cell:     lipgloss.NewStyle().PaddingRight(2),
		AttrName: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
		Cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),

		Exact:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Indicator: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Related:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		None:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}
