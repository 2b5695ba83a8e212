package engine

import (
	"time"

	"github.com/grovetools/pkgview/pkg/models"
)

// Kind identifies the cause of a refresh request.
type Kind int

const (
	ProjectsChanged Kind = iota
	ActionsExecuted
	CacheUpdated
	SourcesChanged
	FilterChanged
	PrereleaseToggled
	ExplicitSearch
	PackageManagerLoaded
	PackagesMissingStatusChanged
	RestartCommand
	ClearSearch
)

// Kinds lists every trigger kind.
var Kinds = []Kind{
	ProjectsChanged,
	ActionsExecuted,
	CacheUpdated,
	SourcesChanged,
	FilterChanged,
	PrereleaseToggled,
	ExplicitSearch,
	PackageManagerLoaded,
	PackagesMissingStatusChanged,
	RestartCommand,
	ClearSearch,
}

var kindNames = map[Kind]string{
	ProjectsChanged:              "ProjectsChanged",
	ActionsExecuted:              "ActionsExecuted",
	CacheUpdated:                 "CacheUpdated",
	SourcesChanged:               "SourcesChanged",
	FilterChanged:                "FilterChanged",
	PrereleaseToggled:            "PrereleaseToggled",
	ExplicitSearch:               "ExplicitSearch",
	PackageManagerLoaded:         "PackageManagerLoaded",
	PackagesMissingStatusChanged: "PackagesMissingStatusChanged",
	RestartCommand:               "RestartCommand",
	ClearSearch:                  "ClearSearch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// invalidatesData reports whether the kind signals that installed packages
// may have changed underneath the surface.
func (k Kind) invalidatesData() bool {
	switch k {
	case ProjectsChanged, ActionsExecuted, CacheUpdated, PackagesMissingStatusChanged:
		return true
	}
	return false
}

// ProjectChange says what happened to a project for ProjectsChanged triggers.
type ProjectChange int

const (
	ProjectUnchanged ProjectChange = iota
	ProjectAdded
	ProjectRemoved
	ProjectUpdated
	ProjectRenamed
)

// Trigger is a normalized request to reconsider refreshing. It is immutable
// once submitted; Elapsed is stamped by the engine on arrival.
type Trigger struct {
	Kind Kind

	// ProjectsChanged
	Change  ProjectChange
	Project models.ProjectRef

	// ActionsExecuted
	ProjectIDs []string

	// CacheUpdated
	ProjectPath string

	// FilterChanged
	Filter models.ItemFilter

	// ExplicitSearch
	SearchText string

	// PrereleaseToggled
	IncludePrerelease bool

	// SourcesChanged raised by a selection change. Empty for list changes.
	Source string

	// PackagesMissingStatusChanged
	PackagesMissing bool

	// Elapsed is the time since the previous completed refresh.
	Elapsed time.Duration

	// deferred marks the single refresh run after an action completes.
	deferred bool
}

// Outcome is the result of handling one trigger.
type Outcome int

const (
	// Success means a load ran and its result was applied.
	Success Outcome = iota
	// NoOp means the trigger was suppressed or its load was superseded.
	NoOp
	// NotApplicable means the trigger does not affect this surface.
	NotApplicable
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case NoOp:
		return "NoOp"
	case NotApplicable:
		return "NotApplicable"
	}
	return "Unknown"
}

// Observation is emitted exactly once per trigger.
type Observation struct {
	Trigger Trigger
	Outcome Outcome
	// Reason explains NoOp and NotApplicable outcomes.
	Reason string
	// Duration is how long the load took, zero when no load ran.
	Duration time.Duration
	// Items is the number of rows applied by a successful load.
	Items int
	// Err is set when the load failed against the backend.
	Err error
}

// Observer receives refresh observations. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveRefresh(Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Observation)

// ObserveRefresh implements Observer.
func (f ObserverFunc) ObserveRefresh(o Observation) { f(o) }

// MultiObserver fans one observation out to several observers.
type MultiObserver []Observer

// ObserveRefresh implements Observer.
func (m MultiObserver) ObserveRefresh(o Observation) {
	for _, obs := range m {
		if obs != nil {
			obs.ObserveRefresh(o)
		}
	}
}
