package tui

import "github.com/charmbracelet/lipgloss"

// Palette colors.
var (
	colorPrimary = lipgloss.Color("#A78BFA")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#F87171")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorText    = lipgloss.Color("#F9FAFB")
	colorBorder  = lipgloss.Color("#6B7280")
	colorSpinner = lipgloss.Color("#60A5FA")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	textStyle = lipgloss.NewStyle().Foreground(colorText)

	stepTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText)

	completeMarkStyle = lipgloss.NewStyle().Foreground(colorSuccess)

	pendingMarkStyle = lipgloss.NewStyle().Foreground(colorMuted)

	descriptionStyle = lipgloss.NewStyle().Foreground(colorMuted).PaddingLeft(4)

	spinnerStyle = lipgloss.NewStyle().Foreground(colorSpinner)

	terminalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Foreground(colorMuted).
			Padding(0, 1)

	statusStyles = map[string]lipgloss.Style{
		"idle":        lipgloss.NewStyle().Foreground(colorMuted),
		"in_progress": lipgloss.NewStyle().Foreground(colorWarning),
		"finished":    lipgloss.NewStyle().Foreground(colorSuccess),
		"failed":      lipgloss.NewStyle().Foreground(colorError),
	}

	errorStyle = lipgloss.NewStyle().Foreground(colorError)
)

func statusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return mutedStyle
}
