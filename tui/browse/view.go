package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/tui/components/table"
	"github.com/grovetools/pkgview/tui/theme"
	"github.com/grovetools/pkgview/tui/utils/scrollbar"
)

// Lines taken by everything except table rows.
const chromeHeight = 11

func (m *Model) pageSize() int {
	if m.height <= chromeHeight {
		return 10
	}
	return m.height - chromeHeight
}

// View renders the browser.
func (m *Model) View() string {
	t := theme.DefaultTheme
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch {
	case m.state.Error != "":
		b.WriteString(t.Error.Render(theme.IconError + " " + m.state.Error))
	case m.state.Loading && len(m.state.Items) == 0:
		b.WriteString(m.spinner.View() + " Loading packages...")
	case len(m.state.Items) == 0:
		b.WriteString(t.Muted.Render("No packages found."))
	default:
		b.WriteString(m.renderTable())
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	t := theme.DefaultTheme
	parts := []string{t.Title.Render(m.state.Title)}
	if m.state.SelectedSource != "" {
		parts = append(parts, t.Muted.Render("source: ")+m.state.SelectedSource)
	}
	if m.state.IncludePrerelease {
		parts = append(parts, t.Warning.Render("prerelease"))
	}
	if m.state.Loading && len(m.state.Items) > 0 {
		parts = append(parts, m.spinner.View())
	}
	if !m.state.Enabled {
		parts = append(parts, t.Muted.Render("(busy)"))
	}
	return strings.Join(parts, "  ")
}

func tabLabel(f models.ItemFilter, c models.Counts) string {
	switch f {
	case models.FilterAll:
		return "Browse"
	case models.FilterInstalled:
		label := "Installed"
		if c.Vulnerable > 0 {
			label += fmt.Sprintf(" %s %d", theme.IconVulnerable, c.Vulnerable)
		}
		if c.Deprecated > 0 {
			label += fmt.Sprintf(" %s %d", theme.IconDeprecated, c.Deprecated)
		}
		return label
	case models.FilterUpdates:
		return fmt.Sprintf("Updates (%d)", c.Updates)
	case models.FilterConsolidate:
		return fmt.Sprintf("Consolidate (%d)", c.Consolidate)
	}
	return string(f)
}

func (m *Model) renderTabs() string {
	t := theme.DefaultTheme
	tabs := make([]string, 0, len(models.Filters))
	for _, f := range models.Filters {
		label := tabLabel(f, m.state.Counts)
		if f == m.state.Filter {
			tabs = append(tabs, t.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, t.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderTable() string {
	t := theme.DefaultTheme
	items := m.state.Items
	start := min(m.scrollOffset, len(items))
	end := min(start+m.pageSize(), len(items))

	rows := make([][]string, 0, end-start)
	for _, item := range items[start:end] {
		name := item.Identity.ID
		if item.Transitive {
			name = t.Transitive.Render(name)
		}
		var badges []string
		if item.IsVulnerable() {
			badges = append(badges, t.Vulnerable.Render(theme.IconVulnerable))
		}
		if item.IsDeprecated() {
			badges = append(badges, t.Deprecated.Render(theme.IconDeprecated))
		}
		if item.InstalledVersion != "" && item.LatestVersion != "" && item.InstalledVersion != item.LatestVersion {
			badges = append(badges, t.Update.Render(theme.IconArrow))
		}
		rows = append(rows, []string{name, item.InstalledVersion, item.LatestVersion, strings.Join(badges, " ")})
	}

	out := table.SelectableTable([]string{"PACKAGE", "INSTALLED", "LATEST", ""}, rows, m.cursor-start)
	if len(items) > end-start {
		out = scrollbar.Overlay(out, len(items), end-start, start)
		out += "\n" + t.Muted.Render(fmt.Sprintf("Showing %d-%d of %d packages", start+1, end, len(items)))
	}
	return out
}

func (m *Model) renderFooter() string {
	t := theme.DefaultTheme
	var line string
	switch {
	case m.search.Focused():
		line = m.search.View()
	case m.state.SearchText != "":
		line = t.Muted.Render("search: ") + m.state.SearchText
	}
	if m.lastOutcome != "" {
		if line != "" {
			line += "  "
		}
		line += t.Muted.Render(m.lastOutcome)
	}
	return line + "\n" + m.help.View(m.keys)
}
