package engine

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/pkg/models"
)

// countsRequest is the snapshot one count refresh runs with.
type countsRequest struct {
	handle            *Handle
	projects          []models.ProjectRef
	solution          bool
	sources           []models.SourceRepository
	includePrerelease bool
}

// RefreshCounts recomputes the derived counters and waits until their
// writes have been applied. A refresh superseded by a newer one returns a
// CANCELLED error and writes nothing.
func (e *Engine) RefreshCounts(ctx context.Context) error {
	var done <-chan error
	if err := e.mb.call(ctx, func() {
		done = e.startCountRefresh()
	}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return pverrors.Wrap(ctx.Err(), pverrors.ErrCodeCancelled, "waiting for counters")
	}
}

// startCountRefresh must run on the mailbox.
func (e *Engine) startCountRefresh() <-chan error {
	done := make(chan error, 1)
	if e.lifetime.Err() != nil {
		done <- pverrors.EngineClosed()
		return done
	}
	req := countsRequest{
		handle:            e.broker.BeginCountRefresh(e.lifetime),
		projects:          e.st.surfaceProjects(),
		solution:          e.st.project == nil,
		sources:           e.st.activeSources(),
		includePrerelease: e.st.includePrerelease,
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.computeCounts(req)
		e.finishCounts(req.handle, err, done)
	}()
	return done
}

// computeCounts runs the consolidate count and the metadata-based counts
// concurrently. Each counter is posted as soon as it is known.
func (e *Engine) computeCounts(req countsRequest) error {
	ctx := req.handle.Context()
	snap, err := e.installed.get(ctx, req.projects)
	if err != nil {
		return err
	}
	groups := groupInstalled(snap)

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		e.postCount(req.handle, store.Update{
			Type:    store.UpdateConsolidate,
			Source:  "counts",
			Payload: consolidateCount(groups, req.solution, e.opts.ConsolidateLimit),
		})
		return nil
	})
	p.Go(func(ctx context.Context) error {
		ids := make([]models.PackageIdentity, 0, len(groups))
		for _, g := range groups {
			ids = append(ids, g.representative())
		}
		meta, err := e.fetchMetadata(ctx, ids, req.sources, req.includePrerelease, true)
		if err != nil {
			return err
		}
		updates, audit := metadataCounts(groups, meta)
		e.postCount(req.handle, store.Update{Type: store.UpdateUpdates, Source: "counts", Payload: updates})
		e.postCount(req.handle, store.Update{Type: store.UpdateAudit, Source: "counts", Payload: audit})
		return nil
	})
	return p.Wait()
}

// consolidateCount counts top-level ids installed at more than one version.
// Project surfaces have nothing to consolidate.
func consolidateCount(groups []*installedGroup, solution bool, limit int) int {
	if !solution {
		return 0
	}
	n := 0
	for _, g := range groups {
		if g.transitive || g.distinctVersions() < 2 {
			continue
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return n
}

// metadataCounts derives the updates count from top-level packages and the
// vulnerable/deprecated counts from every installed package.
func metadataCounts(groups []*installedGroup, meta map[string]metadataEntry) (int, store.Audit) {
	var updates int
	var audit store.Audit
	for _, g := range groups {
		id := g.representative()
		entry, ok := meta[id.Key()]
		if !ok {
			continue
		}
		if !g.transitive && entry.metadata != nil {
			for _, v := range g.versions {
				if hasUpdate(v, entry.metadata.LatestVersion) {
					updates++
					break
				}
			}
		}
		if entry.metadata.IsVulnerable() {
			audit.Vulnerable++
		}
		if entry.deprecation != nil {
			audit.Deprecated++
		}
	}
	return updates, audit
}

// postCount applies u only if h is still the active count refresh.
func (e *Engine) postCount(h *Handle, u store.Update) {
	e.mb.post(func() {
		if e.broker.IsCountRefresh(h) {
			e.store.ApplyUpdate(u)
		}
	})
}

// finishCounts is posted after every write of the refresh, so the writes are
// checked against the slot before h is released.
func (e *Engine) finishCounts(h *Handle, err error, done chan<- error) {
	finish := func() {
		superseded := !e.broker.FinishCountRefresh(h)
		switch {
		case superseded:
			err = pverrors.Cancelled("refresh counts")
		case err != nil && pverrors.IsCancellation(err):
			err = pverrors.Cancelled("refresh counts")
		case err != nil:
			e.logger.WithError(err).Warn("Count refresh failed; keeping previous counters")
		}
		done <- err
	}
	if !e.mb.post(finish) {
		finish()
	}
}
