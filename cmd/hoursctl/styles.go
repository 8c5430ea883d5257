package main

import (
	"github.com/charmbracelet/lipgloss"

	"example.com/drivinghours/internal/compliance"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
)

func levelStyle(level compliance.Level) lipgloss.Style {
	switch level {
	case compliance.LevelViolation:
		return errorStyle
	case compliance.LevelWarning:
		return warningStyle
	default:
		return successStyle
	}
}

func typeColor(t compliance.ActivityType) lipgloss.Color {
	switch t {
	case compliance.ActivityDriving:
		return lipgloss.Color("39")
	case compliance.ActivityWork:
		return lipgloss.Color("214")
	case compliance.ActivityBreak:
		return lipgloss.Color("42")
	default:
		return lipgloss.Color("141")
	}
}
