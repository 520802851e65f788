package tui

import (
	"github.com/charmbracelet/lipgloss"

	"iocviewer/internal/common"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6"))
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	criticalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))
	normalStyle = lipgloss.NewStyle()
)

func severityStyle(s common.Severity) lipgloss.Style {
	switch s {
	case common.SeverityCritical:
		return criticalStyle
	case common.SeverityWarning:
		return warningStyle
	default:
		return normalStyle
	}
}
