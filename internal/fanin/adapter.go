package fanin

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/pkg/models"
)

// Target is the engine surface events are dispatched to. *engine.Engine
// implements it.
type Target interface {
	Submit(t engine.Trigger) <-chan engine.Outcome
	SetVisible(ctx context.Context, visible bool) error
	RenameSurface(ctx context.Context, oldPath string, ref models.ProjectRef) (bool, error)
	ReplaceSources(sources []models.SourceRepository) <-chan engine.Outcome
}

// Adapter turns events into triggers.
type Adapter struct {
	target Target
	logger *logrus.Entry
}

// New creates an adapter for target.
func New(target Target) *Adapter {
	return &Adapter{target: target, logger: logging.NewLogger("fanin")}
}

// Normalize maps an event that corresponds to a single trigger. It returns
// false for events that need more than a plain submission.
func Normalize(ev Event) (engine.Trigger, bool) {
	switch ev.Type {
	case ProjectAdded:
		return engine.Trigger{Kind: engine.ProjectsChanged, Change: engine.ProjectAdded, Project: ev.Project}, true
	case ProjectRemoved:
		return engine.Trigger{Kind: engine.ProjectsChanged, Change: engine.ProjectRemoved, Project: ev.Project}, true
	case ProjectUpdated:
		return engine.Trigger{
			Kind:       engine.ProjectsChanged,
			Change:     engine.ProjectUpdated,
			Project:    ev.Project,
			ProjectIDs: []string{ev.Project.ID},
		}, true
	case CacheUpdated:
		return engine.Trigger{Kind: engine.CacheUpdated, ProjectPath: ev.ProjectPath}, true
	case ActionsExecuted:
		return engine.Trigger{Kind: engine.ActionsExecuted, ProjectIDs: ev.ProjectIDs}, true
	case SourceSelected:
		return engine.Trigger{Kind: engine.SourcesChanged, Source: ev.Source}, true
	case FilterChanged:
		return engine.Trigger{Kind: engine.FilterChanged, Filter: ev.Filter}, true
	case PrereleaseToggled:
		return engine.Trigger{Kind: engine.PrereleaseToggled, IncludePrerelease: ev.IncludePrerelease}, true
	case SearchRequested:
		return engine.Trigger{Kind: engine.ExplicitSearch, SearchText: ev.SearchText}, true
	case SearchCleared:
		return engine.Trigger{Kind: engine.ClearSearch}, true
	case PackagesMissingStatusChanged:
		return engine.Trigger{Kind: engine.PackagesMissingStatusChanged, PackagesMissing: ev.PackagesMissing}, true
	case RestartRequested:
		return engine.Trigger{Kind: engine.RestartCommand}, true
	}
	return engine.Trigger{}, false
}

// Dispatch hands ev to the engine and returns a channel receiving the
// outcome of the trigger it produced. Events that produce no trigger
// resolve to NoOp.
func (a *Adapter) Dispatch(ctx context.Context, ev Event) <-chan engine.Outcome {
	if t, ok := Normalize(ev); ok {
		return a.target.Submit(t)
	}

	switch ev.Type {
	case ProjectRenamed:
		renamed, err := a.target.RenameSurface(ctx, ev.OldPath, ev.Project)
		if err != nil {
			a.logger.WithError(err).WithField("project", ev.Project.ID).Warn("Failed to rename surface")
		} else if renamed {
			a.logger.WithFields(logrus.Fields{"from": ev.OldPath, "to": ev.Project.Path}).Debug("Surface renamed")
		}
		return a.target.Submit(engine.Trigger{
			Kind:    engine.ProjectsChanged,
			Change:  engine.ProjectRenamed,
			Project: ev.Project,
		})
	case SourcesChanged:
		return a.target.ReplaceSources(ev.Sources)
	case VisibilityChanged:
		if err := a.target.SetVisible(ctx, ev.Visible); err != nil {
			a.logger.WithError(err).Warn("Failed to update visibility")
			return resolved(engine.NoOp)
		}
		if !ev.Visible {
			return resolved(engine.NoOp)
		}
		return a.target.Submit(engine.Trigger{Kind: engine.PackageManagerLoaded})
	}

	a.logger.WithField("event", ev.Type).Warn("Ignoring unknown event")
	return resolved(engine.NoOp)
}

func resolved(o engine.Outcome) <-chan engine.Outcome {
	ch := make(chan engine.Outcome, 1)
	ch <- o
	return ch
}

// Attach runs every source and dispatches their events in arrival order
// until the returned subscription is closed or ctx ends.
func (a *Adapter) Attach(ctx context.Context, sources ...Source) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	events := make(chan Event, 64)

	var producers sync.WaitGroup
	for _, src := range sources {
		producers.Add(1)
		go func(src Source) {
			defer producers.Done()
			if err := src.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).WithField("source", src.Name()).Error("Event source failed")
				sub.record(err)
			}
		}(src)
	}

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				producers.Wait()
				return
			case ev := <-events:
				a.logger.WithField("event", ev.String()).Debug("Dispatching event")
				a.Dispatch(ctx, ev)
			}
		}
	}()
	return sub
}

// Subscription is a running set of event sources.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	errs []error
}

func (s *Subscription) record(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// Done is closed once every source has stopped after Close or ctx ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the sources and waits for them. It is idempotent and returns
// the errors the sources failed with.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}
