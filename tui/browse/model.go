// Package browse is the interactive package browser. It renders the visible
// state kept by the engine's store and turns keystrokes into fan-in events.
package browse

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/tui/keymap"
	"github.com/grovetools/pkgview/tui/theme"
)

// Dispatcher delivers UI events to the engine. *fanin.Adapter implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev fanin.Event) <-chan engine.Outcome
}

// storeChangedMsg is sent when the store broadcast an update.
type storeChangedMsg struct{}

// outcomeMsg carries the outcome of a dispatched event.
type outcomeMsg struct {
	event   fanin.EventType
	outcome engine.Outcome
}

// Model is the bubbletea model of the package browser.
type Model struct {
	ctx        context.Context
	dispatcher Dispatcher
	store      *store.Store
	updates    chan store.Update

	state   store.State
	keys    KeyMap
	help    help.Model
	search  textinput.Model
	spinner spinner.Model

	cursor       int
	scrollOffset int
	width        int
	height       int
	lastOutcome  string

	// Selected is the package chosen with enter, if any.
	Selected *models.PackageSearchItem
}

// New creates the browser for the surface backed by st.
func New(ctx context.Context, st *store.Store, dispatcher Dispatcher) *Model {
	search := textinput.New()
	search.Placeholder = "search packages"
	search.Prompt = theme.IconFilter + " "
	search.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.DefaultTheme.Accent

	return &Model{
		ctx:        ctx,
		dispatcher: dispatcher,
		store:      st,
		updates:    st.Subscribe(),
		state:      st.Get(),
		keys:       DefaultKeyMap,
		help:       help.New(),
		search:     search,
		spinner:    sp,
	}
}

// Init subscribes to the store and shows the surface.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForUpdate(),
		m.spinner.Tick,
		m.dispatch(fanin.Event{Type: fanin.VisibilityChanged, Visible: true}),
	)
}

// ApplyKeyOverrides rebinds keys by snake_case name and returns the names
// that match no binding.
func (m *Model) ApplyKeyOverrides(overrides keymap.Overrides) []string {
	return keymap.Apply(&m.keys, overrides)
}

// Close releases the store subscription.
func (m *Model) Close() {
	m.store.Unsubscribe(m.updates)
}

func (m *Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m *Model) dispatch(ev fanin.Event) tea.Cmd {
	ctx, d := m.ctx, m.dispatcher
	return func() tea.Msg {
		return outcomeMsg{event: ev.Type, outcome: <-d.Dispatch(ctx, ev)}
	}
}
