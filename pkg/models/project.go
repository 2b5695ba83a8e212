package models

import (
	"path/filepath"
	"strings"
)

// ProjectRef identifies a project known to the solution.
type ProjectRef struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name" yaml:"name" toml:"name"`
	Path string `json:"path" yaml:"path" toml:"path"`
}

// SamePath reports whether the project lives at path.
func (p ProjectRef) SamePath(path string) bool {
	if p.Path == "" || path == "" {
		return false
	}
	return strings.EqualFold(filepath.Clean(p.Path), filepath.Clean(path))
}

// SourceRepository is a package source the surface can search.
type SourceRepository struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	URL     string `json:"url" yaml:"url" toml:"url"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
}

// IsEnabled defaults to true when Enabled is unset.
func (s SourceRepository) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// AggregateSourceName is the pseudo source that searches every enabled source.
const AggregateSourceName = "All"
