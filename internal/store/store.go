package store

import (
	"slices"
	"sync"

	"github.com/grovetools/pkgview/pkg/models"
)

// Store is the in-memory visible state of one surface.
// Only the engine's mailbox goroutine writes to it; readers and
// subscribers may live on any goroutine.
type Store struct {
	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state: &State{
			Enabled: true,
			Filter:  models.FilterAll,
		},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := *s.state
	st.Items = slices.Clone(s.state.Items)
	st.Sources = slices.Clone(s.state.Sources)
	return st
}

// Items returns a copy of the visible list.
func (s *Store) Items() []models.PackageSearchItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Items)
}

// Counts returns the derived counters.
func (s *Store) Counts() models.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counts
}

// ApplyUpdate modifies the state and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch u.Type {
	case UpdateItems:
		if items, ok := u.Payload.([]models.PackageSearchItem); ok {
			s.state.Items = items
			s.state.Error = ""
			s.state.Loading = false
		}
	case UpdateError:
		if msg, ok := u.Payload.(string); ok {
			s.state.Error = msg
			s.state.Loading = false
		}
	case UpdateLoading:
		if loading, ok := u.Payload.(bool); ok {
			s.state.Loading = loading
		}
	case UpdateQuery:
		if q, ok := u.Payload.(Query); ok {
			s.state.Filter = q.Filter
			s.state.SearchText = q.SearchText
			s.state.IncludePrerelease = q.IncludePrerelease
		}
	case UpdateSources:
		if list, ok := u.Payload.(SourceList); ok {
			s.state.Sources = list.Names
			s.state.SelectedSource = list.Selected
		}
	case UpdateTitle:
		if title, ok := u.Payload.(string); ok {
			s.state.Title = title
		}
	case UpdateEnabled:
		if enabled, ok := u.Payload.(bool); ok {
			s.state.Enabled = enabled
		}
	case UpdateUpdates:
		if n, ok := u.Payload.(int); ok {
			s.state.Counts.Updates = n
		}
	case UpdateAudit:
		if a, ok := u.Payload.(Audit); ok {
			s.state.Counts.Vulnerable = a.Vulnerable
			s.state.Counts.Deprecated = a.Deprecated
		}
	case UpdateConsolidate:
		if n, ok := u.Payload.(int); ok {
			s.state.Counts.Consolidate = n
		}
	}

	// Broadcast to subscribers
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send so a slow renderer never stalls the engine
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Unsubscribing twice is a no-op.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
