package engine

import (
	"context"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/pkg/backend"
	"github.com/grovetools/pkgview/pkg/models"
)

// fakeBackend is a scriptable backend. Searches block on gate while it is
// set; metadata comes from meta keyed by lower-case id.
type fakeBackend struct {
	mu          sync.Mutex
	searchItems []models.PackageSearchItem
	searchErr   error
	gate        chan struct{}
	latency     func() time.Duration
	onSearch    func(backend.SearchRequest)
	installed   []models.InstalledPackage
	meta        map[string]*models.SearchMetadata
	deprecated  map[string]*models.DeprecationMetadata

	searches     atomic.Int32
	metaCalls    atomic.Int32
	requests     []backend.SearchRequest
	installCalls atomic.Int32
}

var _ backend.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		meta:       make(map[string]*models.SearchMetadata),
		deprecated: make(map[string]*models.DeprecationMetadata),
	}
}

func (f *fakeBackend) setGate(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = ch
}

func (f *fakeBackend) setSearch(items []models.PackageSearchItem, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchItems = items
	f.searchErr = err
}

func (f *fakeBackend) setInstalled(pkgs []models.InstalledPackage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = pkgs
}

func (f *fakeBackend) addMetadata(id, latest string, vulnerable, deprecated bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &models.SearchMetadata{Identity: models.PackageIdentity{ID: id, Version: latest}, Title: id, LatestVersion: latest}
	if vulnerable {
		m.Vulnerabilities = []models.Vulnerability{{AdvisoryURL: "https://example.test/" + id, Severity: 2}}
	}
	f.meta[strings.ToLower(id)] = m
	if deprecated {
		f.deprecated[strings.ToLower(id)] = &models.DeprecationMetadata{Message: "legacy"}
	}
}

func (f *fakeBackend) Search(ctx context.Context, req backend.SearchRequest) iter.Seq2[models.PackageSearchItem, error] {
	return func(yield func(models.PackageSearchItem, error) bool) {
		f.searches.Add(1)
		f.mu.Lock()
		f.requests = append(f.requests, req)
		gate, items, err, hook, latency := f.gate, f.searchItems, f.searchErr, f.onSearch, f.latency
		f.mu.Unlock()

		if latency != nil {
			select {
			case <-time.After(latency()):
			case <-ctx.Done():
				yield(models.PackageSearchItem{}, ctx.Err())
				return
			}
		}

		if hook != nil {
			hook(req)
		}
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				yield(models.PackageSearchItem{}, ctx.Err())
				return
			}
		}
		if err != nil {
			yield(models.PackageSearchItem{}, err)
			return
		}
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func (f *fakeBackend) GetMetadata(ctx context.Context, id models.PackageIdentity, sources []models.SourceRepository, includePrerelease bool) (*models.SearchMetadata, *models.DeprecationMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f.metaCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[strings.ToLower(id.ID)]
	if !ok {
		return nil, nil, pverrors.PackageNotFound(id.ID)
	}
	return m, f.deprecated[strings.ToLower(id.ID)], nil
}

func (f *fakeBackend) InstalledPackages(ctx context.Context, projects []models.ProjectRef) ([]models.InstalledPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InstalledPackage
	for _, p := range f.installed {
		for _, proj := range projects {
			if proj.ID == p.ProjectID {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) Install(ctx context.Context, project models.ProjectRef, id models.PackageIdentity) error {
	f.installCalls.Add(1)
	return nil
}

func (f *fakeBackend) Uninstall(ctx context.Context, project models.ProjectRef, packageID string) error {
	return nil
}

// recorder collects observations.
type recorder struct {
	mu  sync.Mutex
	obs []Observation
}

func (r *recorder) ObserveRefresh(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

func (r *recorder) all() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.obs...)
}

func (r *recorder) count(kind Kind, outcome Outcome) int {
	n := 0
	for _, o := range r.all() {
		if o.Trigger.Kind == kind && o.Outcome == outcome {
			n++
		}
	}
	return n
}

var (
	projApp = models.ProjectRef{ID: "proj-7", Name: "App", Path: "/src/app/packages.yml"}
	projLib = models.ProjectRef{ID: "proj-42", Name: "Lib", Path: "/src/lib/packages.yml"}
)

type harness struct {
	engine   *Engine
	store    *store.Store
	backend  *fakeBackend
	recorder *recorder
	clock    *testingclock.FakeClock
	close    func()
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newHarness(t testing.TB, mutate func(*Options)) *harness {
	t.Helper()
	h := startHarness(t, mutate)
	t.Cleanup(h.close)
	return h
}

// startHarness runs an engine without registering cleanup; property runs
// call close at the end of each iteration.
func startHarness(t require.TestingT, mutate func(*Options)) *harness {
	h := &harness{
		store:    store.New(),
		backend:  newFakeBackend(),
		recorder: &recorder{},
		clock:    testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	opts := Options{
		Backend:      h.backend,
		Store:        h.store,
		SolutionName: "Contoso",
		Projects:     []models.ProjectRef{projApp, projLib},
		Sources: []models.SourceRepository{
			{Name: "public", URL: "https://packages.example.test"},
			{Name: "internal", URL: "https://internal.example.test"},
		},
		Clock:    h.clock,
		Observer: h.recorder,
		Logger:   quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	h.engine = e

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	h.close = func() {
		cancel()
		e.Close()
	}
	return h
}

// ready initializes the surface and makes it visible.
func (h *harness) ready(t require.TestingT) {
	ctx := context.Background()
	require.NoError(t, h.engine.Initialize(ctx))
	require.NoError(t, h.engine.SetVisible(ctx, true))
}

func (h *harness) handle(t require.TestingT, trig Trigger) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case o := <-h.engine.Submit(trig):
		return o
	case <-ctx.Done():
		t.Errorf("timed out waiting for %s", trig.Kind)
		t.FailNow()
		return NoOp
	}
}

func (h *harness) status(t require.TestingT) Status {
	st, err := h.engine.Status(context.Background())
	require.NoError(t, err)
	return st
}

func withProjectSurface(p models.ProjectRef) func(*Options) {
	return func(o *Options) {
		o.Project = &p
	}
}
