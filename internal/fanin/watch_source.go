package fanin

import (
	"context"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/pkgview/config"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/pkg/watch"
)

// WatchSource reports configuration and manifest edits. A manifest edit is
// a CacheUpdated event for that project. A configuration edit is diffed
// against the previous solution and source list.
type WatchSource struct {
	configPath string
	debounce   time.Duration
	load       func(path string) (*config.Config, error)
	logger     *logrus.Entry

	projects []models.ProjectRef
	sources  []models.SourceRepository
}

// NewWatchSource watches the file cfg was loaded from and every project
// manifest it names.
func NewWatchSource(cfg *config.Config) *WatchSource {
	return &WatchSource{
		configPath: cfg.Path(),
		debounce:   cfg.Watch.Debounce,
		load:       config.Load,
		logger:     logging.NewLogger("fanin.watch"),
		projects:   slices.Clone(cfg.Solution.Projects),
		sources:    cfg.EnabledSources(),
	}
}

// Name returns the source's name.
func (s *WatchSource) Name() string { return "watch" }

// Run watches until ctx is cancelled.
func (s *WatchSource) Run(ctx context.Context, events chan<- Event) error {
	w, err := watch.New(s.debounce)
	if err != nil {
		return err
	}
	if s.configPath != "" {
		if err := w.Add(s.configPath, watch.ConfigFile); err != nil {
			s.logger.WithError(err).WithField("path", s.configPath).Warn("Cannot watch configuration")
		}
	}
	for _, p := range s.projects {
		s.watchManifest(w, p)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := make(chan watch.Change, 16)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, changes) }()

	for {
		select {
		case <-ctx.Done():
			return <-errc
		case c := <-changes:
			for _, ev := range s.translate(w, c) {
				if !emit(ctx, events, ev) {
					return <-errc
				}
			}
		}
	}
}

func (s *WatchSource) watchManifest(w *watch.Watcher, p models.ProjectRef) {
	if p.Path == "" {
		return
	}
	if err := w.Add(p.Path, watch.Manifest); err != nil {
		s.logger.WithError(err).WithField("project", p.ID).Warn("Cannot watch manifest")
	}
}

func (s *WatchSource) translate(w *watch.Watcher, c watch.Change) []Event {
	if c.Kind == watch.Manifest {
		return []Event{{Type: CacheUpdated, ProjectPath: c.Path}}
	}

	cfg, err := s.load(c.Path)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring unreadable configuration change")
		return nil
	}
	evs := DiffProjects(s.projects, cfg.Solution.Projects)
	for _, ev := range evs {
		if ev.Type == ProjectAdded || ev.Type == ProjectRenamed {
			s.watchManifest(w, ev.Project)
		}
	}
	s.projects = slices.Clone(cfg.Solution.Projects)

	sources := cfg.EnabledSources()
	if !slices.EqualFunc(s.sources, sources, sameSource) {
		evs = append(evs, Event{Type: SourcesChanged, Sources: sources})
		s.sources = sources
	}
	return evs
}

func sameSource(a, b models.SourceRepository) bool {
	return a.Name == b.Name && a.URL == b.URL
}

// DiffProjects returns the project events that turn before into after.
// Projects are matched by id: a changed path is a rename, any other change
// an update.
func DiffProjects(before, after []models.ProjectRef) []Event {
	old := make(map[string]models.ProjectRef, len(before))
	for _, p := range before {
		old[p.ID] = p
	}
	var evs []Event
	seen := make(map[string]bool, len(after))
	for _, p := range after {
		seen[p.ID] = true
		prev, ok := old[p.ID]
		switch {
		case !ok:
			evs = append(evs, Event{Type: ProjectAdded, Project: p})
		case !prev.SamePath(p.Path) && prev.Path != p.Path:
			evs = append(evs, Event{Type: ProjectRenamed, Project: p, OldPath: prev.Path})
		case prev != p:
			evs = append(evs, Event{Type: ProjectUpdated, Project: p})
		}
	}
	for _, p := range before {
		if !seen[p.ID] {
			evs = append(evs, Event{Type: ProjectRemoved, Project: p})
		}
	}
	return evs
}
