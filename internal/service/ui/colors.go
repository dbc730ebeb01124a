package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Help and TUI styles. Plain ANSI colors read well on light and dark themes.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	DescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	FlagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	UserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	SystemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	StatusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Terminal colors for line-oriented output.
var (
	handlerColor = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	skipColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
)
