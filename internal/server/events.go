package server

import (
	"context"
	"errors"
	"sync"

	"github.com/grovetools/pkgview/internal/fanin"
)

// ErrNotAttached is returned by Post while no subscription runs the source.
var ErrNotAttached = errors.New("event source is not attached")

// EventSource is a fanin.Source fed by HTTP requests. It can be attached to
// one subscription at a time.
type EventSource struct {
	mu     sync.RWMutex
	events chan<- fanin.Event
	done   <-chan struct{}
}

func (e *EventSource) Name() string { return "http" }

// Run accepts posted events until ctx is done.
func (e *EventSource) Run(ctx context.Context, events chan<- fanin.Event) error {
	e.mu.Lock()
	if e.events != nil {
		e.mu.Unlock()
		return errors.New("event source is already attached")
	}
	e.events = events
	e.done = ctx.Done()
	e.mu.Unlock()

	<-ctx.Done()

	// Waits for in-flight posts, which unblock on ctx.
	e.mu.Lock()
	e.events = nil
	e.done = nil
	e.mu.Unlock()
	return nil
}

// Post hands ev to the attached subscription.
func (e *EventSource) Post(ctx context.Context, ev fanin.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.events == nil {
		return ErrNotAttached
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrNotAttached
	case <-ctx.Done():
		return ctx.Err()
	}
}
