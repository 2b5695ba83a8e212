// Package table renders lipgloss tables in the pkgview theme.
package table

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/grovetools/pkgview/tui/theme"
)

func newTable(headers []string) *ltable.Table {
	t := theme.DefaultTheme
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = t.Header.Render(h)
	}
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(styled...)
}

// SimpleTable renders headers and rows.
func SimpleTable(headers []string, rows [][]string) string {
	tbl := newTable(headers).StyleFunc(func(row, col int) lipgloss.Style {
		return lipgloss.NewStyle().Padding(0, 1)
	})
	for _, r := range rows {
		tbl = tbl.Row(r...)
	}
	return tbl.String()
}

// StatusTable renders label/value pairs without a border.
func StatusTable(items [][]string) string {
	tbl := ltable.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(1)
		})
	for _, item := range items {
		if len(item) >= 2 {
			tbl = tbl.Row(theme.DefaultTheme.Muted.Render(item[0]+":"), item[1])
		}
	}
	return tbl.String()
}

// SelectableTable renders rows with an arrow in front of the selected one.
// A negative selectedIndex marks nothing.
func SelectableTable(headers []string, rows [][]string, selectedIndex int) string {
	t := theme.DefaultTheme
	tbl := newTable(headers).StyleFunc(func(row, col int) lipgloss.Style {
		// Data rows start at 0 when headers are set.
		style := lipgloss.NewStyle().Padding(0, 1)
		if row == selectedIndex {
			style = style.Inherit(t.SelectedRow)
		}
		return style
	})
	for _, r := range rows {
		tbl = tbl.Row(r...)
	}

	// Line 0 is the top border, 1 the header, 2 the separator.
	selectedLine := -1
	if selectedIndex >= 0 {
		selectedLine = selectedIndex + 1
		if len(headers) > 0 {
			selectedLine += 2
		}
	}

	lines := strings.Split(tbl.String(), "\n")
	arrow := t.Accent.Render(theme.IconArrow)
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i == selectedLine {
			b.WriteString(arrow + " ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(line)
	}
	return b.String()
}
