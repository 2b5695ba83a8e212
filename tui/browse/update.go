package browse

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/pkg/models"
)

// Update handles messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.search.Width = max(10, msg.Width/3)
		return m, nil

	case storeChangedMsg:
		m.state = m.store.Get()
		m.clampCursor()
		return m, m.waitForUpdate()

	case outcomeMsg:
		m.lastOutcome = string(msg.event) + ": " + msg.outcome.String()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		m.search.Blur()
		m.cursor, m.scrollOffset = 0, 0
		return m, m.dispatch(fanin.Event{Type: fanin.SearchRequested, SearchText: m.search.Value()})
	case key.Matches(msg, m.keys.Cancel):
		m.search.Blur()
		m.search.SetValue("")
		if m.state.SearchText == "" {
			return m, nil
		}
		return m, m.dispatch(fanin.Event{Type: fanin.SearchCleared})
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll {
		m.help.ShowAll = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = true

	case key.Matches(msg, m.keys.Search):
		m.search.SetValue(m.state.SearchText)
		m.search.CursorEnd()
		m.search.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Cancel):
		if m.state.SearchText != "" {
			return m, m.dispatch(fanin.Event{Type: fanin.SearchCleared})
		}

	case key.Matches(msg, m.keys.NextFilter):
		return m, m.selectFilter(m.state.Filter.Next())

	case key.Matches(msg, m.keys.PrevFilter):
		return m, m.selectFilter(previousFilter(m.state.Filter))

	case key.Matches(msg, m.keys.Prerelease):
		return m, m.dispatch(fanin.Event{Type: fanin.PrereleaseToggled, IncludePrerelease: !m.state.IncludePrerelease})

	case key.Matches(msg, m.keys.NextSource):
		if next, ok := nextSource(m.state.Sources, m.state.SelectedSource); ok {
			return m, m.dispatch(fanin.Event{Type: fanin.SourceSelected, Source: next})
		}

	case key.Matches(msg, m.keys.Restart):
		return m, m.dispatch(fanin.Event{Type: fanin.RestartRequested})

	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(m.state.Items) {
			item := m.state.Items[m.cursor]
			m.Selected = &item
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.pageSize())

	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.pageSize())
	}
	return m, nil
}

func (m *Model) selectFilter(f models.ItemFilter) tea.Cmd {
	m.cursor, m.scrollOffset = 0, 0
	return m.dispatch(fanin.Event{Type: fanin.FilterChanged, Filter: f})
}

func previousFilter(f models.ItemFilter) models.ItemFilter {
	i := slices.Index(models.Filters, f)
	if i <= 0 {
		return models.Filters[len(models.Filters)-1]
	}
	return models.Filters[i-1]
}

func nextSource(names []string, selected string) (string, bool) {
	if len(names) < 2 {
		return "", false
	}
	i := slices.Index(names, selected)
	return names[(i+1)%len(names)], true
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *Model) clampCursor() {
	m.cursor = min(m.cursor, len(m.state.Items)-1)
	m.cursor = max(m.cursor, 0)
	page := m.pageSize()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+page {
		m.scrollOffset = m.cursor - page + 1
	}
}
