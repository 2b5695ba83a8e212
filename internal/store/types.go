// Package store holds the visible state of a package-browsing surface and
// fans changes out to subscribers such as the TUI.
package store

import (
	"github.com/grovetools/pkgview/pkg/models"
)

// State is everything a renderer needs to draw the surface.
type State struct {
	Title             string                     `json:"title"`
	Enabled           bool                       `json:"enabled"`
	Loading           bool                       `json:"loading"`
	Items             []models.PackageSearchItem `json:"items"`
	Error             string                     `json:"error,omitempty"`
	Filter            models.ItemFilter          `json:"filter"`
	SearchText        string                     `json:"search_text,omitempty"`
	IncludePrerelease bool                       `json:"include_prerelease"`
	Sources           []string                   `json:"sources"`
	SelectedSource    string                     `json:"selected_source"`
	Counts            models.Counts              `json:"counts"`
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateItems       UpdateType = "items"
	UpdateError       UpdateType = "error"
	UpdateLoading     UpdateType = "loading"
	UpdateQuery       UpdateType = "query"
	UpdateSources     UpdateType = "sources"
	UpdateTitle       UpdateType = "title"
	UpdateEnabled     UpdateType = "enabled"
	UpdateUpdates     UpdateType = "count_updates"
	UpdateAudit       UpdateType = "count_audit"
	UpdateConsolidate UpdateType = "count_consolidate"
)

// Query is the payload of UpdateQuery.
type Query struct {
	Filter            models.ItemFilter
	SearchText        string
	IncludePrerelease bool
}

// SourceList is the payload of UpdateSources.
type SourceList struct {
	Names    []string
	Selected string
}

// Audit is the payload of UpdateAudit.
type Audit struct {
	Vulnerable int
	Deprecated int
}

// Update represents a change to the state.
type Update struct {
	Type    UpdateType
	Source  string // Which part of the engine sent this update (e.g., "load", "counts", "action")
	Payload interface{}
}
