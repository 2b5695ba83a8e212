package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/state"
)

// However many triggers arrive during an action, exactly one refresh runs
// after it if any arrived, and none otherwise.
func TestCoalescingLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := startHarness(rt, nil)
		defer h.close()
		h.ready(rt)

		kinds := rapid.SliceOfN(rapid.SampledFrom(Kinds), 0, 12).Draw(rt, "kinds")

		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- h.engine.ExecuteAction(context.Background(), "install", func(ctx context.Context, _ state.ActionOptions) error {
				close(started)
				<-release
				return nil
			}, nil)
		}()
		<-started

		for _, k := range kinds {
			if o := h.handle(rt, triggerFor(k)); o != NoOp {
				rt.Fatalf("%s returned %s during an action", k, o)
			}
		}
		close(release)
		require.NoError(rt, <-done)

		want := 0
		if len(kinds) > 0 {
			want = 1
		}
		var deferred int
		for _, o := range h.recorder.all() {
			if o.Trigger.deferred {
				deferred++
				if o.Outcome != Success {
					rt.Fatalf("deferred refresh returned %s", o.Outcome)
				}
			}
		}
		searches := int(h.backend.searches.Load())
		if deferred != want || searches != want {
			rt.Fatalf("%d triggers: %d deferred refreshes, %d searches; want %d", len(kinds), deferred, searches, want)
		}
		if st := h.status(rt); st.Action != Idle {
			rt.Fatalf("latch left in %s", st.Action)
		}
	})
}

// Whatever order loads finish in, the visible list belongs to the last
// submitted filter.
func TestStaleLoadsNeverApplied(t *testing.T) {
	expected := map[models.ItemFilter][]string{
		models.FilterAll:         {"Browse.Only"},
		models.FilterInstalled:   {"Contoso.Json", "Fabrikam.Http"},
		models.FilterUpdates:     {"Contoso.Json"},
		models.FilterConsolidate: {"Contoso.Json"},
	}

	rapid.Check(t, func(rt *rapid.T) {
		h := startHarness(rt, nil)
		defer h.close()
		h.backend.setSearch(searchItems("Browse.Only"), nil)
		h.backend.setInstalled([]models.InstalledPackage{
			{Identity: models.PackageIdentity{ID: "Contoso.Json", Version: "1.0.0"}, ProjectID: projApp.ID},
			{Identity: models.PackageIdentity{ID: "Contoso.Json", Version: "1.2.0"}, ProjectID: projLib.ID},
			{Identity: models.PackageIdentity{ID: "Fabrikam.Http", Version: "2.0.0"}, ProjectID: projApp.ID},
		})
		h.backend.addMetadata("Contoso.Json", "2.0.0", false, false)
		h.backend.addMetadata("Fabrikam.Http", "2.0.0", false, false)
		seed := rapid.Uint64().Draw(rt, "seed")
		rng := rand.New(rand.NewPCG(seed, seed))
		var rngMu sync.Mutex
		h.backend.latency = func() time.Duration {
			rngMu.Lock()
			defer rngMu.Unlock()
			return time.Duration(rng.IntN(3)) * time.Millisecond
		}
		h.ready(rt)

		filters := rapid.SliceOfN(rapid.SampledFrom(models.Filters), 1, 8).Draw(rt, "filters")
		outs := make([]<-chan Outcome, 0, len(filters))
		for _, f := range filters {
			outs = append(outs, h.engine.Submit(Trigger{Kind: FilterChanged, Filter: f}))
		}
		for i, ch := range outs {
			o := <-ch
			last := i == len(outs)-1
			if last && o != Success {
				rt.Fatalf("last load returned %s", o)
			}
			if o == NotApplicable {
				rt.Fatalf("filter change %d was not applicable", i)
			}
		}

		last := filters[len(filters)-1]
		got := itemIDs(h.store.Items())
		if len(got) != len(expected[last]) {
			rt.Fatalf("filter %s shows %v, want %v", last, got, expected[last])
		}
		for i := range got {
			if got[i] != expected[last][i] {
				rt.Fatalf("filter %s shows %v, want %v", last, got, expected[last])
			}
		}
		if h.store.Get().Filter != last {
			rt.Fatalf("visible filter %s, want %s", h.store.Get().Filter, last)
		}
	})
}

// Every submitted trigger yields exactly one outcome and one observation.
func TestEveryTriggerObservedOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := startHarness(rt, nil)
		defer h.close()
		if rapid.Bool().Draw(rt, "initialize") {
			require.NoError(rt, h.engine.Initialize(context.Background()))
		}

		steps := rapid.SliceOfN(rapid.IntRange(-1, len(Kinds)-1), 1, 20).Draw(rt, "steps")
		submitted := 0
		for _, step := range steps {
			if step < 0 {
				visible := rapid.Bool().Draw(rt, "visible")
				require.NoError(rt, h.engine.SetVisible(context.Background(), visible))
				continue
			}
			h.handle(rt, triggerFor(Kinds[step]))
			submitted++
		}

		if n := len(h.recorder.all()); n != submitted {
			rt.Fatalf("%d triggers produced %d observations", submitted, n)
		}
	})
}
