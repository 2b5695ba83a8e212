package fanin

import "context"

// Source is a background producer of events.
type Source interface {
	// Name returns the source's name for logging.
	Name() string

	// Run emits events until ctx is cancelled. It should block until then.
	Run(ctx context.Context, events chan<- Event) error
}

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	ID string
	Fn func(ctx context.Context, events chan<- Event) error
}

// Name returns the source's name.
func (s SourceFunc) Name() string { return s.ID }

// Run calls Fn.
func (s SourceFunc) Run(ctx context.Context, events chan<- Event) error {
	return s.Fn(ctx, events)
}

// emit sends ev unless ctx ends first.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
