package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Accent color for the Maquette wordmark.
const accentViolet = "#8B5CF6"

// Wordmark ASCII art.
var bannerArt = []string{
	" ███╗   ███╗ █████╗  ██████╗ ██╗   ██╗███████╗████████╗████████╗███████╗",
	" ████╗ ████║██╔══██╗██╔═══██╗██║   ██║██╔════╝╚══██╔══╝╚══██╔══╝██╔════╝",
	" ██╔████╔██║███████║██║   ██║██║   ██║█████╗     ██║      ██║   █████╗  ",
	" ██║╚██╔╝██║██╔══██║██║▄▄ ██║██║   ██║██╔══╝     ██║      ██║   ██╔══╝  ",
	" ██║ ╚═╝ ██║██║  ██║╚██████╔╝╚██████╔╝███████╗   ██║      ██║   ███████╗",
	" ╚═╝     ╚═╝╚═╝  ╚═╝ ╚══▀▀═╝  ╚═════╝ ╚══════╝   ╚═╝      ╚═╝   ╚══════╝",
}

// Styles contains all lipgloss styles for the shell.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style

	// Component panel
	Card      lipgloss.Style
	CardTitle lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	BarFill   lipgloss.Style
	BarEmpty  lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentViolet)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		CardTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentViolet)),
		Value:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		BarFill:   lipgloss.NewStyle().Foreground(lipgloss.Color(accentViolet)),
		BarEmpty:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// RenderBanner returns the wordmark as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range bannerArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Describe the tool you want, in plain words",
	"  • Refine the spec with follow-up messages",
	"  • Ctrl+B (or /build) turns the spec into a working tool",
	"  • /add fills the tool's form, /artifacts lists saved tools",
	"  • Ctrl+C cancels, Ctrl+D exits",
}

// RenderWelcomeTips returns the styled tips block.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
