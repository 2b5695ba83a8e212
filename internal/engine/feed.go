package engine

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sahilm/fuzzy"
	"github.com/sourcegraph/conc/pool"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/backend"
	"github.com/grovetools/pkgview/pkg/models"
)

// loadSession is the snapshot one primary load runs with.
type loadSession struct {
	handle            *Handle
	trigger           Trigger
	filter            models.ItemFilter
	searchText        string
	includePrerelease bool
	sources           []models.SourceRepository
	projects          []models.ProjectRef
	solution          bool
	useCachedMetadata bool
	started           time.Time
}

// installedCache holds the installed-package snapshot shared by the
// installed feeds and the counters.
type installedCache struct {
	mu         sync.Mutex
	system     backend.ProjectSystem
	snapshot   []models.InstalledPackage
	valid      bool
	generation uint64
}

func (c *installedCache) get(ctx context.Context, projects []models.ProjectRef) ([]models.InstalledPackage, error) {
	c.mu.Lock()
	if c.valid {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	gen := c.generation
	c.mu.Unlock()

	snap, err := c.system.InstalledPackages(ctx, projects)
	if err != nil {
		if pverrors.IsCancellation(err) || ctx.Err() != nil {
			return nil, pverrors.Cancelled("load installed packages")
		}
		return nil, pverrors.BackendUnavailable("load installed packages", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.snapshot = snap
		c.valid = true
	}
	return snap, nil
}

func (c *installedCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.valid = false
	c.snapshot = nil
}

// installedGroup is every installed reference of one package id.
type installedGroup struct {
	id         string
	versions   map[string]string // project id -> version
	transitive bool
}

// representative is the identity metadata is fetched for: the highest
// installed version.
func (g *installedGroup) representative() models.PackageIdentity {
	var best string
	for _, v := range g.versions {
		if best == "" || compareVersions(v, best) > 0 {
			best = v
		}
	}
	return models.PackageIdentity{ID: g.id, Version: best}
}

func (g *installedGroup) distinctVersions() int {
	seen := make(map[string]struct{}, len(g.versions))
	for _, v := range g.versions {
		seen[strings.ToLower(v)] = struct{}{}
	}
	return len(seen)
}

// groupInstalled groups references by package id. Top-level references win
// over transitive ones for the same id.
func groupInstalled(snap []models.InstalledPackage) []*installedGroup {
	byID := make(map[string]*installedGroup)
	var order []string
	for _, p := range snap {
		key := strings.ToLower(p.Identity.ID)
		g, ok := byID[key]
		if !ok {
			g = &installedGroup{id: p.Identity.ID, versions: make(map[string]string), transitive: true}
			byID[key] = g
			order = append(order, key)
		}
		if p.Transitive {
			if g.transitive {
				g.versions[p.ProjectID] = p.Identity.Version
			}
			continue
		}
		if g.transitive {
			// First top-level reference replaces transitive ones.
			g.transitive = false
			g.versions = make(map[string]string)
		}
		g.versions[p.ProjectID] = p.Identity.Version
	}
	groups := make([]*installedGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, byID[key])
	}
	return groups
}

func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// hasUpdate reports whether latest is strictly newer than installed.
func hasUpdate(installed, latest string) bool {
	if installed == "" || latest == "" {
		return false
	}
	return compareVersions(latest, installed) > 0
}

// metadata resolves metadata through the cache. Unknown packages yield a
// nil entry rather than an error.
func (e *Engine) metadata(ctx context.Context, id models.PackageIdentity, sources []models.SourceRepository, includePrerelease, useCache bool) (metadataEntry, error) {
	key := metadataKey(id, sources, includePrerelease)
	if useCache {
		if entry, ok := e.cache.get(key); ok {
			return entry, nil
		}
	}
	gen := e.cache.gen()
	meta, dep, err := e.backend.GetMetadata(ctx, id, sources, includePrerelease)
	if err != nil {
		if pverrors.Is(err, pverrors.ErrCodePackageNotFound) {
			return metadataEntry{}, nil
		}
		if pverrors.IsCancellation(err) || ctx.Err() != nil {
			return metadataEntry{}, pverrors.Cancelled("get metadata")
		}
		return metadataEntry{}, pverrors.BackendUnavailable("get metadata", err).WithDetail("package", id.String())
	}
	entry := metadataEntry{metadata: meta, deprecation: dep}
	e.cache.put(gen, key, entry)
	return entry, nil
}

// fetchMetadata resolves metadata for every identity in parallel.
func (e *Engine) fetchMetadata(ctx context.Context, ids []models.PackageIdentity, sources []models.SourceRepository, includePrerelease, useCache bool) (map[string]metadataEntry, error) {
	type result struct {
		key   string
		entry metadataEntry
	}
	p := pool.NewWithResults[result]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(e.opts.MetadataConcurrency)
	for _, id := range ids {
		p.Go(func(ctx context.Context) (result, error) {
			entry, err := e.metadata(ctx, id, sources, includePrerelease, useCache)
			return result{key: id.Key(), entry: entry}, err
		})
	}
	results, err := p.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return nil, pverrors.Cancelled("get metadata")
		}
		return nil, err
	}
	out := make(map[string]metadataEntry, len(results))
	for _, r := range results {
		out[r.key] = r.entry
	}
	return out, nil
}

// load runs the feed selected by the session's filter.
func (e *Engine) load(s loadSession) ([]models.PackageSearchItem, error) {
	ctx := s.handle.Context()
	switch s.filter {
	case models.FilterInstalled, models.FilterUpdates, models.FilterConsolidate:
		return e.loadInstalled(ctx, s)
	default:
		return e.loadBrowse(ctx, s)
	}
}

// loadBrowse streams the remote search and annotates installed versions.
func (e *Engine) loadBrowse(ctx context.Context, s loadSession) ([]models.PackageSearchItem, error) {
	snap, err := e.installed.get(ctx, s.projects)
	if err != nil {
		return nil, err
	}
	installed := make(map[string]map[string]string)
	for _, g := range groupInstalled(snap) {
		if !g.transitive {
			installed[strings.ToLower(g.id)] = g.versions
		}
	}

	req := backend.SearchRequest{
		Sources:           s.sources,
		Filter:            s.filter,
		SearchText:        s.searchText,
		IncludePrerelease: s.includePrerelease,
		UseRecommender:    s.searchText == "",
	}
	var items []models.PackageSearchItem
	for item, err := range e.backend.Search(ctx, req) {
		if err != nil {
			if pverrors.IsCancellation(err) || ctx.Err() != nil {
				return nil, pverrors.Cancelled("search")
			}
			return nil, pverrors.BackendUnavailable("search", err)
		}
		if ctx.Err() != nil {
			return nil, pverrors.Cancelled("search")
		}
		if versions, ok := installed[strings.ToLower(item.Identity.ID)]; ok {
			item.Projects = versions
			item.InstalledVersion = (&installedGroup{id: item.Identity.ID, versions: versions}).representative().Version
		}
		items = append(items, item)
	}
	return items, nil
}

// loadInstalled builds the installed, updates and consolidate feeds from the
// installed snapshot and per-package metadata.
func (e *Engine) loadInstalled(ctx context.Context, s loadSession) ([]models.PackageSearchItem, error) {
	snap, err := e.installed.get(ctx, s.projects)
	if err != nil {
		return nil, err
	}

	var groups []*installedGroup
	for _, g := range groupInstalled(snap) {
		switch s.filter {
		case models.FilterUpdates:
			if g.transitive {
				continue
			}
		case models.FilterConsolidate:
			if !s.solution || g.transitive || g.distinctVersions() < 2 {
				continue
			}
		}
		groups = append(groups, g)
	}
	groups = filterGroups(groups, s.searchText)

	ids := make([]models.PackageIdentity, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.representative())
	}
	meta, err := e.fetchMetadata(ctx, ids, s.sources, s.includePrerelease, s.useCachedMetadata)
	if err != nil {
		return nil, err
	}

	items := make([]models.PackageSearchItem, 0, len(groups))
	for _, g := range groups {
		id := g.representative()
		item := models.PackageSearchItem{
			Identity:         id,
			InstalledVersion: id.Version,
			Transitive:       g.transitive,
			Projects:         g.versions,
		}
		if entry, ok := meta[id.Key()]; ok && entry.metadata != nil {
			item.Title = entry.metadata.Title
			item.Description = entry.metadata.Description
			item.Authors = entry.metadata.Authors
			item.LatestVersion = entry.metadata.LatestVersion
			item.Vulnerabilities = entry.metadata.Vulnerabilities
			item.DownloadCount = entry.metadata.DownloadCount
			item.Deprecation = entry.deprecation
		}
		if s.filter == models.FilterUpdates && !hasUpdate(item.InstalledVersion, item.LatestVersion) {
			continue
		}
		items = append(items, item)
	}

	// Top-level before transitive, then by id.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Transitive != items[j].Transitive {
			return !items[i].Transitive
		}
		return strings.ToLower(items[i].Identity.ID) < strings.ToLower(items[j].Identity.ID)
	})
	return items, nil
}

// filterGroups keeps the groups whose id fuzzily matches text.
func filterGroups(groups []*installedGroup, text string) []*installedGroup {
	text = strings.TrimSpace(text)
	if text == "" {
		return groups
	}
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.id
	}
	matches := fuzzy.Find(text, ids)
	keep := make([]int, 0, len(matches))
	for _, m := range matches {
		keep = append(keep, m.Index)
	}
	slices.Sort(keep)
	out := make([]*installedGroup, 0, len(keep))
	for _, i := range keep {
		out = append(out, groups[i])
	}
	return out
}
