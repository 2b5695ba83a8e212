package models

import (
	"fmt"
	"strings"
)

// PackageIdentity identifies a single version of a package.
type PackageIdentity struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// String returns "id@version", or just the id when no version is set.
func (p PackageIdentity) String() string {
	if p.Version == "" {
		return p.ID
	}
	return fmt.Sprintf("%s@%s", p.ID, p.Version)
}

// Key returns a case-insensitive lookup key for the identity.
func (p PackageIdentity) Key() string {
	return strings.ToLower(p.ID) + "@" + strings.ToLower(p.Version)
}

// Vulnerability describes a known advisory against a package version.
type Vulnerability struct {
	AdvisoryURL string `json:"advisory_url" yaml:"advisory_url"`
	Severity    int    `json:"severity" yaml:"severity"`
}

// DeprecationMetadata is present when a package version has been deprecated.
type DeprecationMetadata struct {
	Message          string   `json:"message,omitempty" yaml:"message,omitempty"`
	Reasons          []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	AlternatePackage string   `json:"alternate_package,omitempty" yaml:"alternate_package,omitempty"`
}

// SearchMetadata is the metadata returned for a single package identity.
type SearchMetadata struct {
	Identity        PackageIdentity `json:"identity"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	Authors         string          `json:"authors,omitempty"`
	LatestVersion   string          `json:"latest_version"`
	Versions        []string        `json:"versions,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
	DownloadCount   int64           `json:"download_count,omitempty"`
}

// IsVulnerable reports whether any advisory applies.
func (m *SearchMetadata) IsVulnerable() bool {
	return m != nil && len(m.Vulnerabilities) > 0
}

// PackageSearchItem is one row of the visible package list.
type PackageSearchItem struct {
	Identity         PackageIdentity      `json:"identity"`
	Title            string               `json:"title,omitempty"`
	Description      string               `json:"description,omitempty"`
	Authors          string               `json:"authors,omitempty"`
	LatestVersion    string               `json:"latest_version,omitempty"`
	InstalledVersion string               `json:"installed_version,omitempty"`
	Transitive       bool                 `json:"transitive,omitempty"`
	Vulnerabilities  []Vulnerability      `json:"vulnerabilities,omitempty"`
	Deprecation      *DeprecationMetadata `json:"deprecation,omitempty"`
	DownloadCount    int64                `json:"download_count,omitempty"`
	// Projects lists the projects the package is installed in, with their versions.
	Projects map[string]string `json:"projects,omitempty"`
}

// IsVulnerable reports whether the item carries any advisory.
func (i PackageSearchItem) IsVulnerable() bool {
	return len(i.Vulnerabilities) > 0
}

// IsDeprecated reports whether the item carries deprecation metadata.
func (i PackageSearchItem) IsDeprecated() bool {
	return i.Deprecation != nil
}

// InstalledPackage is a package reference found in a project.
type InstalledPackage struct {
	Identity   PackageIdentity `json:"identity" yaml:"identity"`
	ProjectID  string          `json:"project_id" yaml:"project_id"`
	Transitive bool            `json:"transitive,omitempty" yaml:"transitive,omitempty"`
}

// Counts holds the derived tab counters shown next to the primary list.
type Counts struct {
	Updates     int `json:"updates"`
	Vulnerable  int `json:"vulnerable"`
	Deprecated  int `json:"deprecated"`
	Consolidate int `json:"consolidate"`
}
