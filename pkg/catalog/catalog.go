// Package catalog implements the backend interfaces over a local YAML package
// catalog and YAML project manifests.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/backend"
	"github.com/grovetools/pkgview/pkg/models"
)

// Version is one published version of a catalog package.
type Version struct {
	Version         string                      `yaml:"version"`
	Vulnerabilities []models.Vulnerability      `yaml:"vulnerabilities,omitempty"`
	Deprecation     *models.DeprecationMetadata `yaml:"deprecation,omitempty"`
}

// Package is a catalog entry.
type Package struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Authors     string    `yaml:"authors,omitempty"`
	Downloads   int64     `yaml:"downloads,omitempty"`
	Source      string    `yaml:"source,omitempty"`
	Versions    []Version `yaml:"versions"`
}

type file struct {
	Packages []Package `yaml:"packages"`
}

// Catalog is an in-memory package index.
type Catalog struct {
	mu       sync.RWMutex
	packages map[string]*Package
	ids      []string

	// Latency is added before the first search result and before each
	// metadata lookup, to make refresh orchestration observable locally.
	Latency time.Duration

	*Manifests
}

// New builds a catalog from packages.
func New(pkgs []Package) *Catalog {
	c := &Catalog{
		packages:  make(map[string]*Package, len(pkgs)),
		Manifests: NewManifests(),
	}
	c.Replace(pkgs)
	return c
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return New(f.Packages), nil
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(pkgs []Package) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packages = make(map[string]*Package, len(pkgs))
	c.ids = c.ids[:0]
	for i := range pkgs {
		p := pkgs[i]
		key := strings.ToLower(p.ID)
		c.packages[key] = &p
		c.ids = append(c.ids, p.ID)
	}
	sort.Strings(c.ids)
}

// Search implements backend.Searcher.
func (c *Catalog) Search(ctx context.Context, req backend.SearchRequest) iter.Seq2[models.PackageSearchItem, error] {
	return func(yield func(models.PackageSearchItem, error) bool) {
		if err := c.wait(ctx); err != nil {
			yield(models.PackageSearchItem{}, err)
			return
		}

		for _, p := range c.rank(req.SearchText) {
			if err := ctx.Err(); err != nil {
				yield(models.PackageSearchItem{}, err)
				return
			}
			if !fromSources(p, req.Sources) {
				continue
			}
			latest := latestVersion(p, req.IncludePrerelease)
			if latest == nil {
				continue
			}
			item := models.PackageSearchItem{
				Identity:        models.PackageIdentity{ID: p.ID, Version: latest.Version},
				Title:           p.Title,
				Description:     p.Description,
				Authors:         p.Authors,
				LatestVersion:   latest.Version,
				Vulnerabilities: latest.Vulnerabilities,
				Deprecation:     latest.Deprecation,
				DownloadCount:   p.Downloads,
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// GetMetadata implements backend.MetadataProvider.
func (c *Catalog) GetMetadata(ctx context.Context, id models.PackageIdentity, sources []models.SourceRepository, includePrerelease bool) (*models.SearchMetadata, *models.DeprecationMetadata, error) {
	if err := c.wait(ctx); err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	p, ok := c.packages[strings.ToLower(id.ID)]
	c.mu.RUnlock()
	if !ok || !fromSources(p, sources) {
		return nil, nil, pverrors.PackageNotFound(id.ID)
	}

	latest := latestVersion(p, includePrerelease)
	requested := latest
	if id.Version != "" {
		requested = findVersion(p, id.Version)
	}

	meta := &models.SearchMetadata{
		Identity:      id,
		Title:         p.Title,
		Description:   p.Description,
		Authors:       p.Authors,
		DownloadCount: p.Downloads,
	}
	for _, v := range p.Versions {
		meta.Versions = append(meta.Versions, v.Version)
	}
	if latest != nil {
		meta.LatestVersion = latest.Version
	}

	var deprecation *models.DeprecationMetadata
	if requested != nil {
		meta.Vulnerabilities = requested.Vulnerabilities
		deprecation = requested.Deprecation
	}
	return meta, deprecation, nil
}

func (c *Catalog) wait(ctx context.Context) error {
	if c.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rank returns the packages matching text, best match first. Without text,
// packages are ordered by download count.
func (c *Catalog) rank(text string) []*Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Package
	if strings.TrimSpace(text) == "" {
		for _, id := range c.ids {
			result = append(result, c.packages[strings.ToLower(id)])
		}
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Downloads > result[j].Downloads
		})
		return result
	}

	for _, m := range fuzzy.Find(text, c.ids) {
		result = append(result, c.packages[strings.ToLower(m.Str)])
	}
	return result
}

func fromSources(p *Package, sources []models.SourceRepository) bool {
	if p.Source == "" || len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if strings.EqualFold(s.Name, p.Source) {
			return true
		}
	}
	return false
}

func findVersion(p *Package, version string) *Version {
	want, err := semver.NewVersion(version)
	for i := range p.Versions {
		v := &p.Versions[i]
		if v.Version == version {
			return v
		}
		if err != nil {
			continue
		}
		if got, err := semver.NewVersion(v.Version); err == nil && got.Equal(want) {
			return v
		}
	}
	return nil
}

// latestVersion returns the highest version of p, skipping prereleases unless
// includePrerelease is set. Versions that do not parse are ignored.
func latestVersion(p *Package, includePrerelease bool) *Version {
	var (
		best    *Version
		bestVer *semver.Version
	)
	for i := range p.Versions {
		v := &p.Versions[i]
		parsed, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if parsed.Prerelease() != "" && !includePrerelease {
			continue
		}
		if bestVer == nil || parsed.GreaterThan(bestVer) {
			best, bestVer = v, parsed
		}
	}
	return best
}

// Ensure Catalog implements the backend interfaces.
var _ backend.Backend = (*Catalog)(nil)
