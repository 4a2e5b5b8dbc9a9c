package clifmt

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
)

func Headerf(format string, args ...any) string {
	return headerStyle.Render(fmt.Sprintf(format, args...))
}

func Key(s string) string     { return keyStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Warn(s string) string    { return warnStyle.Render(s) }
