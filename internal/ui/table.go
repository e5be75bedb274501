package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column title.
type TableColumn struct {
	Title string
}

// RenderSimpleTable renders rows under a bold header, each column padded
// to its widest cell. Returns "" for no rows.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c.Title)
	}
	for _, row := range rows {
		for i := range columns {
			if i < len(row) {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
	}

	headerStyle := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	b.WriteString(headerStyle.Render(joinPadded(titles, widths)))
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString(joinPadded(row, widths))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func joinPadded(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i == len(widths)-1 {
			parts[i] = cell
			continue
		}
		parts[i] = cell + strings.Repeat(" ", w-lipgloss.Width(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
