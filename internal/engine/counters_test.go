package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

func installedFixture(h *harness) {
	h.backend.setInstalled([]models.InstalledPackage{
		{Identity: models.PackageIdentity{ID: "Contoso.Json", Version: "1.0.0"}, ProjectID: projApp.ID},
		{Identity: models.PackageIdentity{ID: "Contoso.Json", Version: "1.1.0"}, ProjectID: projLib.ID},
		{Identity: models.PackageIdentity{ID: "Fabrikam.Http", Version: "3.0.0"}, ProjectID: projApp.ID},
		{Identity: models.PackageIdentity{ID: "Legacy.Xml", Version: "0.9.0"}, ProjectID: projLib.ID},
		{Identity: models.PackageIdentity{ID: "Contoso.Core", Version: "1.0.0"}, ProjectID: projApp.ID, Transitive: true},
	})
	h.backend.addMetadata("Contoso.Json", "2.0.0", false, false)
	h.backend.addMetadata("Fabrikam.Http", "3.0.0", true, false)
	h.backend.addMetadata("Legacy.Xml", "1.0.0", false, true)
	h.backend.addMetadata("Contoso.Core", "2.0.0", true, false)
}

func TestRefreshCountsSolution(t *testing.T) {
	h := newHarness(t, nil)
	installedFixture(h)

	require.NoError(t, h.engine.RefreshCounts(context.Background()))
	assert.Equal(t, models.Counts{
		Updates:     2, // Contoso.Json and Legacy.Xml; transitive Contoso.Core is not counted
		Vulnerable:  2, // Fabrikam.Http and transitive Contoso.Core
		Deprecated:  1,
		Consolidate: 1,
	}, h.store.Counts())
}

func TestRefreshCountsProjectSurface(t *testing.T) {
	h := newHarness(t, withProjectSurface(projApp))
	installedFixture(h)

	require.NoError(t, h.engine.RefreshCounts(context.Background()))
	assert.Equal(t, models.Counts{Updates: 1, Vulnerable: 2}, h.store.Counts())
}

func TestRefreshCountsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	installedFixture(h)

	require.NoError(t, h.engine.RefreshCounts(context.Background()))
	first := h.store.Counts()
	require.NoError(t, h.engine.RefreshCounts(context.Background()))
	assert.Equal(t, first, h.store.Counts())
}

func TestConsolidateCountIsCapped(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ConsolidateLimit = 100 })
	var pkgs []models.InstalledPackage
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("Pkg.%03d", i)
		pkgs = append(pkgs,
			models.InstalledPackage{Identity: models.PackageIdentity{ID: id, Version: "1.0.0"}, ProjectID: projApp.ID},
			models.InstalledPackage{Identity: models.PackageIdentity{ID: id, Version: "2.0.0"}, ProjectID: projLib.ID},
		)
	}
	h.backend.setInstalled(pkgs)

	require.NoError(t, h.engine.RefreshCounts(context.Background()))
	assert.Equal(t, 100, h.store.Counts().Consolidate)
}

func TestSupersededCountRefreshWritesNothing(t *testing.T) {
	h := newHarness(t, nil)
	installedFixture(h)

	// A refresh whose handle is no longer active must not touch the counters.
	stale := h.engine.broker.BeginCountRefresh(context.Background())
	h.engine.broker.BeginCountRefresh(context.Background())
	done := make(chan error, 1)
	err := h.engine.computeCounts(countsRequest{
		handle:   stale,
		projects: []models.ProjectRef{projApp, projLib},
		solution: true,
	})
	h.engine.finishCounts(stale, err, done)

	assert.True(t, pverrors.IsCancellation(<-done))
	assert.Equal(t, models.Counts{}, h.store.Counts())
}

func TestCountsHelpers(t *testing.T) {
	groups := groupInstalled([]models.InstalledPackage{
		{Identity: models.PackageIdentity{ID: "A", Version: "1.0.0"}, ProjectID: "p1"},
		{Identity: models.PackageIdentity{ID: "a", Version: "1.0.0"}, ProjectID: "p2"},
		{Identity: models.PackageIdentity{ID: "B", Version: "1.0.0"}, ProjectID: "p1", Transitive: true},
		{Identity: models.PackageIdentity{ID: "B", Version: "2.0.0"}, ProjectID: "p2"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].distinctVersions())
	assert.False(t, groups[1].transitive, "a top-level reference wins over a transitive one")
	assert.Equal(t, "2.0.0", groups[1].representative().Version)

	assert.True(t, hasUpdate("1.0.0", "1.0.1"))
	assert.False(t, hasUpdate("1.0.0", "1.0.0-beta"))
	assert.False(t, hasUpdate("", "1.0.0"))
	assert.Equal(t, 0, consolidateCount(groups, false, 100))
}
