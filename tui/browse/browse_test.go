package browse

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/pkg/models"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []fanin.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev fanin.Event) <-chan engine.Outcome {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	ch := make(chan engine.Outcome, 1)
	ch <- engine.Success
	return ch
}

func (f *fakeDispatcher) last() fanin.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(t *testing.T) (*Model, *store.Store, *fakeDispatcher) {
	t.Helper()
	st := store.New()
	d := &fakeDispatcher{}
	m := New(context.Background(), st, d)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, st, d
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func TestTabDispatchesNextFilter(t *testing.T) {
	m, _, d := newModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	run(t, m, cmd)

	assert.Equal(t, fanin.Event{Type: fanin.FilterChanged, Filter: models.FilterInstalled}, d.last())
	assert.Equal(t, "filter_changed: Success", m.lastOutcome)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	run(t, m, cmd)
	assert.Equal(t, models.FilterConsolidate, d.last().Filter)
}

func TestSearchFlow(t *testing.T) {
	m, _, d := newModel(t)

	m.Update(keyRunes("/"))
	require.True(t, m.search.Focused())
	m.Update(keyRunes("json"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	assert.False(t, m.search.Focused())
	assert.Equal(t, fanin.Event{Type: fanin.SearchRequested, SearchText: "json"}, d.last())
}

func TestEscapeClearsActiveSearch(t *testing.T) {
	m, st, d := newModel(t)
	st.ApplyUpdate(store.Update{Type: store.UpdateQuery, Payload: store.Query{Filter: models.FilterAll, SearchText: "json"}})
	m.Update(storeChangedMsg{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	run(t, m, cmd)
	assert.Equal(t, fanin.SearchCleared, d.last().Type)
}

func TestStoreChangesAreRendered(t *testing.T) {
	m, st, _ := newModel(t)

	st.ApplyUpdate(store.Update{Type: store.UpdateTitle, Payload: "Packages: app"})
	st.ApplyUpdate(store.Update{Type: store.UpdateItems, Payload: []models.PackageSearchItem{
		{Identity: models.PackageIdentity{ID: "Acme.Json"}, InstalledVersion: "1.0.0", LatestVersion: "2.0.0"},
		{Identity: models.PackageIdentity{ID: "Acme.Http"}, LatestVersion: "3.1.0"},
	}})
	st.ApplyUpdate(store.Update{Type: store.UpdateUpdates, Payload: 1})

	msg := m.waitForUpdate()()
	require.IsType(t, storeChangedMsg{}, msg)
	m.Update(msg)

	view := m.View()
	assert.Contains(t, view, "Packages: app")
	assert.Contains(t, view, "Acme.Json")
	assert.Contains(t, view, "Acme.Http")
	assert.Contains(t, view, "Updates (1)")
}

func TestSelectQuitsWithItem(t *testing.T) {
	m, st, _ := newModel(t)
	st.ApplyUpdate(store.Update{Type: store.UpdateItems, Payload: []models.PackageSearchItem{
		{Identity: models.PackageIdentity{ID: "Acme.Json"}},
		{Identity: models.PackageIdentity{ID: "Acme.Http"}},
	}})
	m.Update(storeChangedMsg{})

	m.Update(keyRunes("j"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, m.Selected)
	assert.Equal(t, "Acme.Http", m.Selected.Identity.ID)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestErrorStateIsShown(t *testing.T) {
	m, st, _ := newModel(t)
	st.ApplyUpdate(store.Update{Type: store.UpdateError, Payload: "search service unavailable"})
	m.Update(storeChangedMsg{})
	assert.Contains(t, m.View(), "search service unavailable")
}

func TestNextSource(t *testing.T) {
	next, ok := nextSource([]string{"All", "public", "internal"}, "internal")
	assert.True(t, ok)
	assert.Equal(t, "All", next)

	_, ok = nextSource([]string{"All"}, "All")
	assert.False(t, ok)
}

func TestInitShowsSurface(t *testing.T) {
	m, _, d := newModel(t)
	cmd := m.dispatch(fanin.Event{Type: fanin.VisibilityChanged, Visible: true})
	run(t, m, cmd)
	assert.Equal(t, fanin.Event{Type: fanin.VisibilityChanged, Visible: true}, d.last())
	assert.NotNil(t, m.Init())
}

func TestKeyOverrides(t *testing.T) {
	m, st, d := newModel(t)
	unknown := m.ApplyKeyOverrides(map[string][]string{"next_source": {"S"}, "teleport": {"t"}})
	assert.Equal(t, []string{"teleport"}, unknown)
	st.ApplyUpdate(store.Update{Type: store.UpdateSources, Payload: store.SourceList{Names: []string{"All", "public"}, Selected: "All"}})
	m.Update(storeChangedMsg{})

	_, cmd := m.Update(keyRunes("s"))
	assert.Nil(t, cmd)

	_, cmd = m.Update(keyRunes("S"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, fanin.Event{Type: fanin.SourceSelected, Source: "public"}, d.last())
}

func TestScrollbarShownForLongLists(t *testing.T) {
	m, st, _ := newModel(t)
	items := make([]models.PackageSearchItem, 100)
	for i := range items {
		items[i] = models.PackageSearchItem{Identity: models.PackageIdentity{ID: fmt.Sprintf("Pkg.%03d", i)}}
	}
	st.ApplyUpdate(store.Update{Type: store.UpdateItems, Payload: items})
	m.Update(storeChangedMsg{})

	view := m.View()
	assert.Contains(t, view, "Pkg.000")
	assert.Contains(t, view, "█")
	assert.Contains(t, view, "Showing 1-19 of 100 packages")
}
