// Package backend defines the collaborators the refresh engine consumes:
// the remote search service, the metadata service and the project system.
package backend

import (
	"context"
	"iter"

	"github.com/grovetools/pkgview/pkg/models"
)

// SearchRequest is the snapshot a single search call runs with.
type SearchRequest struct {
	Sources           []models.SourceRepository
	Filter            models.ItemFilter
	SearchText        string
	IncludePrerelease bool
	UseRecommender    bool
}

// Searcher performs remote package searches.
//
// The returned sequence is lazy and cancellable through ctx. It is not
// restartable: a cancelled search requires a new call.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) iter.Seq2[models.PackageSearchItem, error]
}

// MetadataProvider resolves metadata for a single package identity.
type MetadataProvider interface {
	GetMetadata(ctx context.Context, id models.PackageIdentity, sources []models.SourceRepository, includePrerelease bool) (*models.SearchMetadata, *models.DeprecationMetadata, error)
}

// ProjectSystem exposes installed packages and the install/uninstall operations
// that actions wrap.
type ProjectSystem interface {
	// InstalledPackages returns installed and transitive references for the given projects.
	InstalledPackages(ctx context.Context, projects []models.ProjectRef) ([]models.InstalledPackage, error)

	// Install adds or updates a top-level reference in a project.
	Install(ctx context.Context, project models.ProjectRef, id models.PackageIdentity) error

	// Uninstall removes a top-level reference from a project.
	Uninstall(ctx context.Context, project models.ProjectRef, packageID string) error
}

// Backend bundles the three collaborators.
type Backend interface {
	Searcher
	MetadataProvider
	ProjectSystem
}
