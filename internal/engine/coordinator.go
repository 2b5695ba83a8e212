// Package engine decides, for every refresh trigger raised against a
// package-browsing surface, whether to start a load, cancel one, defer to a
// running action, or do nothing. All visible state is mutated on a single
// mailbox goroutine; loads and count refreshes run in the background and
// post their results back.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/grovetools/pkgview/config"
	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/pkg/backend"
	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/state"
)

// Options configures an Engine.
type Options struct {
	Backend  backend.Backend
	Store    *store.Store
	Settings *state.Store // optional

	SolutionName string
	Projects     []models.ProjectRef
	// Project is the displayed project. Nil means a solution surface.
	Project *models.ProjectRef

	Sources      []models.SourceRepository
	ActiveSource string

	Clock    clock.PassiveClock
	Observer Observer
	Logger   *logrus.Entry

	MetadataConcurrency int
	ConsolidateLimit    int
	MetadataCacheSize   int
	MetadataCacheTTL    time.Duration
	MailboxSize         int
}

// OptionsFromConfig fills the configuration-derived options. Backend and
// Store still have to be set by the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SolutionName:        cfg.Solution.Name,
		Projects:            cfg.Solution.Projects,
		Project:             cfg.SurfaceProject(),
		Sources:             cfg.EnabledSources(),
		ActiveSource:        cfg.ActiveSource,
		MetadataConcurrency: cfg.Engine.MetadataConcurrency,
		ConsolidateLimit:    cfg.Engine.ConsolidateLimit,
		MetadataCacheSize:   cfg.Engine.MetadataCacheSize,
		MetadataCacheTTL:    cfg.Engine.MetadataCacheTTL,
		MailboxSize:         cfg.Engine.MailboxSize,
	}
}

// engineState is owned by the mailbox goroutine.
type engineState struct {
	action               latch
	suppressNewSearch    bool
	initialized          bool
	loadedAndInitialized bool
	visible              bool
	dirtyWhileHidden     bool
	clock                restartClock

	solutionName      string
	projects          []models.ProjectRef
	project           *models.ProjectRef
	settingsKey       string
	sources           []models.SourceRepository
	source            string
	filter            models.ItemFilter
	searchText        string
	includePrerelease bool
	options           state.ActionOptions
}

func (s *engineState) surfaceProjects() []models.ProjectRef {
	if s.project != nil {
		return []models.ProjectRef{*s.project}
	}
	return slices.Clone(s.projects)
}

func (s *engineState) activeSources() []models.SourceRepository {
	if s.source != "" && s.source != models.AggregateSourceName {
		for _, src := range s.sources {
			if src.Name == s.source {
				return []models.SourceRepository{src}
			}
		}
	}
	return slices.Clone(s.sources)
}

func (s *engineState) hasSource(name string) bool {
	if name == models.AggregateSourceName {
		return true
	}
	for _, src := range s.sources {
		if src.Name == name {
			return true
		}
	}
	return false
}

func (s *engineState) title() string {
	if s.project != nil {
		name := s.project.Name
		if name == "" {
			name = s.project.ID
		}
		return "Packages: " + name
	}
	return fmt.Sprintf("Packages: Solution '%s'", s.solutionName)
}

// Status is a point-in-time view of the engine state.
type Status struct {
	Action            ActionState
	Initialized       bool
	Loaded            bool
	Visible           bool
	DirtyWhileHidden  bool
	SuppressNewSearch bool
	Source            string
	Filter            models.ItemFilter
	SearchText        string
	IncludePrerelease bool
	SettingsKey       string
}

// Engine is the refresh orchestrator for one surface.
type Engine struct {
	opts      Options
	backend   backend.Backend
	store     *store.Store
	settings  *state.Store
	broker    *Broker
	mb        *mailbox
	cache     *metadataCache
	installed *installedCache
	observer  Observer
	logger    *logrus.Entry

	lifetime  context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	st engineState
}

// New creates an engine. Run must be started before triggers are handled.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, pverrors.New(pverrors.ErrCodeInvalidInput, "engine requires a backend")
	}
	if opts.Store == nil {
		return nil, pverrors.New(pverrors.ErrCodeInvalidInput, "engine requires a store")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("engine")
	}
	if opts.Observer == nil {
		opts.Observer = ObserverFunc(func(Observation) {})
	}
	if opts.MetadataConcurrency <= 0 {
		opts.MetadataConcurrency = 8
	}
	if opts.ConsolidateLimit <= 0 {
		opts.ConsolidateLimit = 100
	}
	if opts.SolutionName == "" {
		opts.SolutionName = "solution"
	}
	if opts.ActiveSource == "" {
		opts.ActiveSource = models.AggregateSourceName
	}

	lifetime, stop := context.WithCancel(context.Background())
	e := &Engine{
		opts:      opts,
		backend:   opts.Backend,
		store:     opts.Store,
		settings:  opts.Settings,
		broker:    NewBroker(),
		mb:        newMailbox(opts.MailboxSize),
		cache:     newMetadataCache(opts.MetadataCacheSize, opts.MetadataCacheTTL),
		installed: &installedCache{system: opts.Backend},
		observer:  opts.Observer,
		logger:    opts.Logger,
		lifetime:  lifetime,
		stop:      stop,
	}

	e.st = engineState{
		clock:        newRestartClock(opts.Clock),
		solutionName: opts.SolutionName,
		projects:     slices.Clone(opts.Projects),
		sources:      enabledSources(opts.Sources),
		source:       opts.ActiveSource,
		filter:       models.FilterAll,
	}
	if opts.Project != nil {
		p := *opts.Project
		e.st.project = &p
	}
	e.st.settingsKey = state.SurfaceKey(e.st.solutionName, e.st.project)
	return e, nil
}

func enabledSources(sources []models.SourceRepository) []models.SourceRepository {
	var out []models.SourceRepository
	for _, s := range sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Run consumes the mailbox until ctx is cancelled or the engine is closed.
func (e *Engine) Run(ctx context.Context) error {
	err := e.mb.loop(ctx)
	e.Close()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close cancels in-flight work and releases every handle. It waits for the
// mailbox job that is running, and triggers still queued receive their
// outcome. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.stop()
		e.mb.close()
		e.broker.Close()
		e.wg.Wait()
	})
}

// Broker exposes the engine's token broker.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Store returns the visible state the engine writes to.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Initialize restores persisted settings and marks the surface initialized.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.mb.call(ctx, func() {
		if e.st.initialized {
			return
		}
		if e.settings != nil {
			settings, err := e.settings.Load(e.st.settingsKey)
			if err != nil {
				e.logger.WithError(err).Warn("Failed to load surface settings; using defaults")
			} else {
				if settings.SourceName != "" && e.st.hasSource(settings.SourceName) {
					e.st.source = settings.SourceName
				}
				if settings.SelectedFilter != "" {
					e.st.filter = settings.SelectedFilter
				}
				e.st.includePrerelease = settings.IncludePrerelease
				e.st.options = settings.Options
			}
		}
		if !e.st.hasSource(e.st.source) {
			e.st.source = models.AggregateSourceName
		}
		e.st.initialized = true
		e.publishTitle()
		e.publishSources()
		e.publishQuery()
		e.logger.WithFields(logrus.Fields{
			"surface": e.st.settingsKey,
			"source":  e.st.source,
			"filter":  e.st.filter,
		}).Debug("Surface initialized")
	})
}

// SetVisible records whether the surface is shown to the user.
func (e *Engine) SetVisible(ctx context.Context, visible bool) error {
	return e.mb.call(ctx, func() {
		e.st.visible = visible
	})
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.mb.call(ctx, func() {
		st = Status{
			Action:            e.st.action.state,
			Initialized:       e.st.initialized,
			Loaded:            e.st.loadedAndInitialized,
			Visible:           e.st.visible,
			DirtyWhileHidden:  e.st.dirtyWhileHidden,
			SuppressNewSearch: e.st.suppressNewSearch,
			Source:            e.st.source,
			Filter:            e.st.filter,
			SearchText:        e.st.searchText,
			IncludePrerelease: e.st.includePrerelease,
			SettingsKey:       e.st.settingsKey,
		}
	})
	return st, err
}

// Submit enqueues t and returns a channel that receives its single outcome.
// Triggers are handled in submission order.
func (e *Engine) Submit(t Trigger) <-chan Outcome {
	reply := make(chan Outcome, 1)
	if !e.mb.post(func() { e.handle(t, reply) }) {
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "engine closed"}, reply)
	}
	return reply
}

// HandleTrigger submits t and waits for its outcome. If ctx ends first the
// trigger is still handled, and NoOp is returned to the caller.
func (e *Engine) HandleTrigger(ctx context.Context, t Trigger) Outcome {
	select {
	case o := <-e.Submit(t):
		return o
	case <-ctx.Done():
		return NoOp
	}
}

// CancelLoad cancels the in-flight primary load, if any.
func (e *Engine) CancelLoad(ctx context.Context) error {
	return e.mb.call(ctx, func() {
		e.broker.CancelPrimaryLoad()
		e.store.ApplyUpdate(store.Update{Type: store.UpdateLoading, Source: "load", Payload: false})
	})
}

// RenameSurface handles a project rename. When the renamed project is the
// displayed one, the persisted settings move to the new key and the title
// changes. It reports whether the displayed project was renamed.
func (e *Engine) RenameSurface(ctx context.Context, oldPath string, ref models.ProjectRef) (bool, error) {
	var renamed bool
	err := e.mb.call(ctx, func() {
		for i, p := range e.st.projects {
			if p.ID == ref.ID || p.SamePath(oldPath) {
				e.st.projects[i] = ref
			}
		}
		if e.st.project == nil || !e.st.project.SamePath(oldPath) {
			return
		}
		oldKey := e.st.settingsKey
		p := ref
		e.st.project = &p
		e.st.settingsKey = state.SurfaceKey(e.st.solutionName, e.st.project)
		if e.settings != nil && oldKey != e.st.settingsKey {
			if err := e.settings.Rename(oldKey, e.st.settingsKey); err != nil {
				e.logger.WithError(err).Warn("Failed to move surface settings")
			}
		}
		e.publishTitle()
		renamed = true
	})
	return renamed, err
}

// ReplaceSources repopulates the source list. The selection change this
// causes is observed but suppressed; exactly one SourcesChanged trigger then
// reloads the surface, and its outcome is returned.
func (e *Engine) ReplaceSources(sources []models.SourceRepository) <-chan Outcome {
	reply := make(chan Outcome, 1)
	t := Trigger{Kind: SourcesChanged}
	if !e.mb.post(func() {
		e.st.suppressNewSearch = true
		e.st.sources = enabledSources(sources)
		selected := e.st.source
		if !e.st.hasSource(selected) {
			selected = models.AggregateSourceName
		}
		e.st.source = selected
		e.publishSources()

		// Repopulating the list re-raises the selection.
		e.handle(Trigger{Kind: SourcesChanged, Source: selected}, make(chan Outcome, 1))

		e.st.suppressNewSearch = false
		e.handle(t, reply)
	}) {
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "engine closed"}, reply)
	}
	return reply
}

// handle runs on the mailbox and sends exactly one outcome to reply.
func (e *Engine) handle(t Trigger, reply chan<- Outcome) {
	t.Elapsed = e.st.clock.Elapsed()
	e.bookkeep(t)

	switch {
	case !e.st.initialized:
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "not initialized"}, reply)
		return
	case !e.st.visible:
		if t.Kind.invalidatesData() {
			e.st.dirtyWhileHidden = true
		}
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "hidden"}, reply)
		return
	case t.Kind == SourcesChanged && t.Source != "" && e.st.suppressNewSearch:
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "source list repopulating"}, reply)
		return
	case e.st.action.deferRefresh():
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "action executing"}, reply)
		return
	case t.Kind == PackageManagerLoaded && e.st.loadedAndInitialized && !e.st.dirtyWhileHidden:
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "already loaded"}, reply)
		return
	}

	if !e.applicable(t) {
		e.respond(Observation{Trigger: t, Outcome: NotApplicable, Reason: "not applicable to surface"}, reply)
		return
	}
	e.refresh(t, reply)
}

// refresh applies t to the surface, persists settings and starts the load.
func (e *Engine) refresh(t Trigger, reply chan<- Outcome) {
	useCached := e.applyTrigger(t)
	e.st.dirtyWhileHidden = false
	e.saveSettings()
	e.startLoad(t, useCached, reply)
	if e.st.filter != models.FilterAll {
		e.startCountRefresh()
	}
}

// bookkeep records what a trigger says about the world even when the
// trigger itself is suppressed.
func (e *Engine) bookkeep(t Trigger) {
	switch t.Kind {
	case ProjectsChanged:
		e.recordProjectChange(t)
		e.installed.invalidate()
	case ActionsExecuted, PackagesMissingStatusChanged:
		e.installed.invalidate()
	case CacheUpdated:
		// Ordered before any later load that reuses cached metadata.
		e.installed.invalidate()
		e.cache.purge()
	}
}

func (e *Engine) recordProjectChange(t Trigger) {
	switch t.Change {
	case ProjectAdded:
		for _, p := range e.st.projects {
			if p.ID == t.Project.ID {
				return
			}
		}
		e.st.projects = append(e.st.projects, t.Project)
	case ProjectRemoved:
		e.st.projects = slices.DeleteFunc(e.st.projects, func(p models.ProjectRef) bool {
			return p.ID == t.Project.ID
		})
	case ProjectUpdated, ProjectRenamed:
		for i, p := range e.st.projects {
			if p.ID == t.Project.ID {
				e.st.projects[i] = t.Project
			}
		}
	}
}

// applicable decides whether t concerns the displayed surface.
func (e *Engine) applicable(t Trigger) bool {
	if t.deferred {
		return true
	}
	switch t.Kind {
	case ActionsExecuted:
		if e.st.project == nil {
			return true
		}
		return slices.Contains(t.ProjectIDs, e.st.project.ID)
	case CacheUpdated:
		if e.st.project == nil {
			return true
		}
		return e.st.project.SamePath(t.ProjectPath)
	case ProjectsChanged:
		return e.st.project == nil
	case PackagesMissingStatusChanged:
		return !t.PackagesMissing
	}
	return true
}

// applyTrigger folds the trigger payload into the surface query and reports
// whether the load may reuse cached metadata.
func (e *Engine) applyTrigger(t Trigger) (useCached bool) {
	switch t.Kind {
	case FilterChanged:
		if t.Filter != "" {
			e.st.filter = t.Filter
		}
		useCached = true
	case ExplicitSearch:
		e.st.searchText = t.SearchText
	case ClearSearch:
		e.st.searchText = ""
		useCached = true
	case PrereleaseToggled:
		e.st.includePrerelease = t.IncludePrerelease
	case SourcesChanged:
		if t.Source != "" {
			if e.st.hasSource(t.Source) {
				e.st.source = t.Source
			} else {
				e.logger.WithField("source", t.Source).Warn("Unknown source selected; using all sources")
				e.st.source = models.AggregateSourceName
			}
			e.publishSources()
		}
	case RestartCommand:
		e.installed.invalidate()
		e.cache.purge()
	case PackageManagerLoaded:
		useCached = !e.st.dirtyWhileHidden
	}
	e.publishQuery()
	return useCached
}

func (e *Engine) startLoad(t Trigger, useCached bool, reply chan<- Outcome) {
	if e.lifetime.Err() != nil {
		e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "engine closed"}, reply)
		return
	}
	s := loadSession{
		handle:            e.broker.BeginPrimaryLoad(e.lifetime),
		trigger:           t,
		filter:            e.st.filter,
		searchText:        e.st.searchText,
		includePrerelease: e.st.includePrerelease,
		sources:           e.st.activeSources(),
		projects:          e.st.surfaceProjects(),
		solution:          e.st.project == nil,
		useCachedMetadata: useCached,
		started:           e.st.clock.Now(),
	}
	e.store.ApplyUpdate(store.Update{Type: store.UpdateLoading, Source: "load", Payload: true})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		items, err := e.load(s)
		if !e.mb.post(func() { e.applyLoad(s, items, err, reply) }) {
			e.respond(Observation{Trigger: t, Outcome: NoOp, Reason: "engine closed"}, reply)
		}
	}()
}

// applyLoad runs on the mailbox. Only the session that still owns the
// primary slot may touch the visible list.
func (e *Engine) applyLoad(s loadSession, items []models.PackageSearchItem, err error, reply chan<- Outcome) {
	obs := Observation{
		Trigger:  s.trigger,
		Duration: e.st.clock.Now().Sub(s.started),
	}
	if !e.broker.FinishPrimary(s.handle) {
		obs.Outcome, obs.Reason = NoOp, "superseded"
		e.respond(obs, reply)
		return
	}
	if err != nil {
		if pverrors.IsCancellation(err) {
			e.store.ApplyUpdate(store.Update{Type: store.UpdateLoading, Source: "load", Payload: false})
			obs.Outcome, obs.Reason = NoOp, "cancelled"
			e.respond(obs, reply)
			return
		}
		// The load ran and completed in an error state.
		e.store.ApplyUpdate(store.Update{Type: store.UpdateError, Source: "load", Payload: err.Error()})
		obs.Outcome, obs.Err = Success, err
		e.respond(obs, reply)
		return
	}

	e.store.ApplyUpdate(store.Update{Type: store.UpdateItems, Source: "load", Payload: items})
	e.st.loadedAndInitialized = true
	e.st.clock.Restart()
	obs.Outcome, obs.Items = Success, len(items)
	e.respond(obs, reply)

	if s.filter == models.FilterAll {
		e.startCountRefresh()
	}
}

// respond emits the observation and the outcome. It is safe off the mailbox.
func (e *Engine) respond(obs Observation, reply chan<- Outcome) {
	e.observer.ObserveRefresh(obs)
	entry := e.logger.WithFields(logrus.Fields{
		"trigger": obs.Trigger.Kind,
		"outcome": obs.Outcome,
		"elapsed": obs.Trigger.Elapsed,
	})
	if obs.Reason != "" {
		entry = entry.WithField("reason", obs.Reason)
	}
	if obs.Err != nil {
		entry.WithError(obs.Err).Warn("Load failed")
	} else {
		entry.Debug("Trigger handled")
	}
	reply <- obs.Outcome
}

func (e *Engine) saveSettings() {
	if e.settings == nil {
		return
	}
	settings := state.UserSettings{
		SourceName:        e.st.source,
		IncludePrerelease: e.st.includePrerelease,
		SelectedFilter:    e.st.filter,
		Options:           e.st.options,
	}
	if err := e.settings.Save(e.st.settingsKey, settings); err != nil {
		e.logger.WithError(err).Warn("Failed to save surface settings")
	}
}

func (e *Engine) publishTitle() {
	e.store.ApplyUpdate(store.Update{Type: store.UpdateTitle, Source: "engine", Payload: e.st.title()})
}

func (e *Engine) publishSources() {
	names := []string{models.AggregateSourceName}
	for _, s := range e.st.sources {
		names = append(names, s.Name)
	}
	e.store.ApplyUpdate(store.Update{
		Type:    store.UpdateSources,
		Source:  "engine",
		Payload: store.SourceList{Names: names, Selected: e.st.source},
	})
}

func (e *Engine) publishQuery() {
	e.store.ApplyUpdate(store.Update{
		Type:   store.UpdateQuery,
		Source: "engine",
		Payload: store.Query{
			Filter:            e.st.filter,
			SearchText:        e.st.searchText,
			IncludePrerelease: e.st.includePrerelease,
		},
	})
}
