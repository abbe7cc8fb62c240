package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))

	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	blurredStyle = lipgloss.NewStyle()

	buttonStyle         = lipgloss.NewStyle().Padding(0, 1).MarginRight(1).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	disabledButtonStyle = buttonStyle.Foreground(lipgloss.Color("240")).Background(lipgloss.Color("236"))

	outputStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
