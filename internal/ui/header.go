package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string
	Tagline string
}

// HeaderWidth is the default width of the header divider
const HeaderWidth = 50

// RenderHeader renders the startup banner.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ColorInfo).
		Bold(true)

	versionStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	var b strings.Builder

	b.WriteString(titleStyle.Render("rterm"))
	if info.Version != "" {
		b.WriteString(" ")
		b.WriteString(versionStyle.Render(info.Version))
	}
	b.WriteString("\n")

	if info.Tagline != "" {
		b.WriteString(MutedStyle().Render(info.Tagline))
		b.WriteString("\n")
	}

	b.WriteString(MutedStyle().Render(strings.Repeat("━", HeaderWidth)))
	b.WriteString("\n")

	return b.String()
}

// RenderPrompt renders the input prompt. An empty identity means no
// remote session; shell forwarding shows no prompt at all because the
// remote shell prints its own.
func RenderPrompt(identity string, forwarding bool) string {
	if forwarding {
		return ""
	}
	if identity == "" {
		return lipgloss.NewStyle().Foreground(ColorInfo).Render("rterm") + "> "
	}
	return lipgloss.NewStyle().Foreground(ColorSecondary).Render(identity) + "> "
}
