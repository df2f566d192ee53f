package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/deploader/pkg/fetch"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleLink  = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim   = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	styleKey = lipgloss.NewStyle().Foreground(colorGray).Width(40)
)

// Status line markers.
var (
	markSuccess = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	markError   = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	markInfo    = lipgloss.NewStyle().Foreground(colorGray).Render("›")
	markFile    = StyleDim.Render("→")
)

// sourceStyles lists fetch sources in display order, cheapest first.
var sourceStyles = []struct {
	source string
	style  lipgloss.Style
}{
	{fetch.SourceLoaded, lipgloss.NewStyle().Foreground(colorGray)},
	{fetch.SourceLocal, lipgloss.NewStyle().Foreground(colorCyan)},
	{fetch.SourceDisk, lipgloss.NewStyle().Foreground(colorGreen)},
	{fetch.SourceRemote, lipgloss.NewStyle().Foreground(colorYellow)},
}

func printStatus(mark, format string, args ...any) {
	fmt.Println(mark + " " + fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) { printStatus(markSuccess, format, args...) }
func printError(format string, args ...any)   { printStatus(markError, format, args...) }
func printInfo(format string, args ...any)    { printStatus(markInfo, format, args...) }

// printDetail prints an indented, dimmed line under a status line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printTitle(title string) {
	fmt.Println()
	fmt.Println(StyleTitle.Render(title))
}

func printFile(path string) {
	fmt.Println("  " + markFile + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println("  " + styleKey.Render(key) + " " + StyleValue.Render(value))
}

// formatStats renders non-zero per-source counts, e.g. "2 disk · 1 remote".
func formatStats(counts map[string]int) string {
	var parts []string
	for _, s := range sourceStyles {
		if n := counts[s.source]; n > 0 {
			parts = append(parts, s.style.Render(fmt.Sprintf("%d %s", n, s.source)))
		}
	}
	return "  " + strings.Join(parts, StyleDim.Render(" · "))
}
