package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "packages.yml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("packages: []\n"), 0644))

	w, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Add(manifest, Manifest))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Change, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(manifest, []byte("packages: []\n"), 0644))
	}
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))

	select {
	case c := <-out:
		assert.Equal(t, Manifest, c.Kind)
		resolved, _ := filepath.Abs(manifest)
		assert.Equal(t, filepath.Clean(resolved), c.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case c := <-out:
		t.Fatalf("unexpected second change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "config", ConfigFile.String())
	assert.Equal(t, "manifest", Manifest.String())
}
