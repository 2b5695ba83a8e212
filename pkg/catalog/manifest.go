package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

// Manifest is the on-disk package list of a single project.
type Manifest struct {
	Packages   []models.PackageIdentity `yaml:"packages"`
	Transitive []models.PackageIdentity `yaml:"transitive,omitempty"`
}

// Manifests implements backend.ProjectSystem over YAML manifest files. Each
// project's Path points at its manifest.
type Manifests struct {
	mu sync.Mutex
}

// NewManifests creates a manifest-backed project system.
func NewManifests() *Manifests {
	return &Manifests{}
}

// ReadManifest loads the manifest at path. A missing file is an empty manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest saves m to path.
func WriteManifest(path string, m *Manifest) error {
	sort.Slice(m.Packages, func(i, j int) bool {
		return strings.ToLower(m.Packages[i].ID) < strings.ToLower(m.Packages[j].ID)
	})

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// InstalledPackages implements backend.ProjectSystem.
func (m *Manifests) InstalledPackages(ctx context.Context, projects []models.ProjectRef) ([]models.InstalledPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.InstalledPackage
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		manifest, err := ReadManifest(p.Path)
		if err != nil {
			return nil, err
		}
		for _, id := range manifest.Packages {
			result = append(result, models.InstalledPackage{Identity: id, ProjectID: p.ID})
		}
		for _, id := range manifest.Transitive {
			result = append(result, models.InstalledPackage{Identity: id, ProjectID: p.ID, Transitive: true})
		}
	}
	return result, nil
}

// Install implements backend.ProjectSystem. Installing an id that is already
// referenced replaces its version.
func (m *Manifests) Install(ctx context.Context, project models.ProjectRef, id models.PackageIdentity) error {
	if id.ID == "" || id.Version == "" {
		return pverrors.New(pverrors.ErrCodeInvalidInput, "install requires a package id and version")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, err := ReadManifest(project.Path)
	if err != nil {
		return err
	}
	replaced := false
	for i := range manifest.Packages {
		if strings.EqualFold(manifest.Packages[i].ID, id.ID) {
			manifest.Packages[i].Version = id.Version
			replaced = true
		}
	}
	if !replaced {
		manifest.Packages = append(manifest.Packages, id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteManifest(project.Path, manifest)
}

// Uninstall implements backend.ProjectSystem.
func (m *Manifests) Uninstall(ctx context.Context, project models.ProjectRef, packageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, err := ReadManifest(project.Path)
	if err != nil {
		return err
	}
	kept := manifest.Packages[:0]
	found := false
	for _, p := range manifest.Packages {
		if strings.EqualFold(p.ID, packageID) {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return pverrors.PackageNotFound(packageID).WithDetail("project", project.ID)
	}
	manifest.Packages = kept
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteManifest(project.Path, manifest)
}
