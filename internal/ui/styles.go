package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary   = lipgloss.Color("205") // Pink/magenta
	ColorSuccess   = lipgloss.Color("35")  // Green
	ColorWarning   = lipgloss.Color("214") // Gold/yellow
	ColorError     = lipgloss.Color("196") // Red
	ColorDim       = lipgloss.Color("241") // Gray
	ColorAccent    = lipgloss.Color("39")  // Blue
	ColorHighlight = lipgloss.Color("212") // Light pink
)

const (
	SymbolBullet     = "●"
	SymbolEmpty      = "○"
	SymbolTree       = "└"
	SymbolTreeBranch = "├"
	SymbolArrow      = "▸"
	SymbolCheck      = "✓"
	SymbolCross      = "✗"
	SymbolWarn       = "⚠"
	SymbolPending    = "◐"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	AddressStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Underline(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	StageStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)
)

// Field renders an aligned "label value" line.
func Field(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

// Success renders a check-marked line.
func Success(format string, args ...any) string {
	return SuccessStyle.Render(SymbolCheck + " " + fmt.Sprintf(format, args...))
}

// Failure renders a cross-marked line.
func Failure(format string, args ...any) string {
	return ErrorStyle.Render(SymbolCross + " " + fmt.Sprintf(format, args...))
}

// Warning renders a warning line.
func Warning(format string, args ...any) string {
	return WarningStyle.Render(SymbolWarn + " " + fmt.Sprintf(format, args...))
}

// Step renders a workflow stage transition.
func Step(stage string) string {
	return StageStyle.Render(SymbolArrow + " " + stage)
}
