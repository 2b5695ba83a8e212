// Package fanin normalizes events from the host environment into engine
// refresh triggers.
package fanin

import (
	"fmt"

	"github.com/grovetools/pkgview/pkg/models"
)

// EventType names an external event.
type EventType string

const (
	ProjectAdded                 EventType = "project_added"
	ProjectRemoved               EventType = "project_removed"
	ProjectUpdated               EventType = "project_updated"
	ProjectRenamed               EventType = "project_renamed"
	CacheUpdated                 EventType = "cache_updated"
	ActionsExecuted              EventType = "actions_executed"
	SourcesChanged               EventType = "sources_changed"
	SourceSelected               EventType = "source_selected"
	FilterChanged                EventType = "filter_changed"
	PrereleaseToggled            EventType = "prerelease_toggled"
	SearchRequested              EventType = "search_requested"
	SearchCleared                EventType = "search_cleared"
	PackagesMissingStatusChanged EventType = "packages_missing_status_changed"
	RestartRequested             EventType = "restart_requested"
	VisibilityChanged            EventType = "visibility_changed"
)

// Event is one occurrence in the host environment. Only the fields relevant
// to Type are read.
type Event struct {
	Type EventType `json:"type"`

	Project models.ProjectRef `json:"project,omitempty"`
	// OldPath is the path a renamed project used to live at.
	OldPath     string   `json:"old_path,omitempty"`
	ProjectIDs  []string `json:"project_ids,omitempty"`
	ProjectPath string   `json:"project_path,omitempty"`

	Sources []models.SourceRepository `json:"sources,omitempty"`
	Source  string                    `json:"source,omitempty"`

	Filter            models.ItemFilter `json:"filter,omitempty"`
	SearchText        string            `json:"search_text,omitempty"`
	IncludePrerelease bool              `json:"include_prerelease,omitempty"`
	PackagesMissing   bool              `json:"packages_missing,omitempty"`
	Visible           bool              `json:"visible,omitempty"`
}

func (e Event) String() string {
	switch e.Type {
	case ProjectAdded, ProjectRemoved, ProjectUpdated:
		return fmt.Sprintf("%s(%s)", e.Type, e.Project.ID)
	case ProjectRenamed:
		return fmt.Sprintf("%s(%s -> %s)", e.Type, e.OldPath, e.Project.Path)
	case SourceSelected:
		return fmt.Sprintf("%s(%s)", e.Type, e.Source)
	case FilterChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.Filter)
	}
	return string(e.Type)
}
