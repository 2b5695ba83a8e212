package state

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

func TestStateOperations(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(DefaultPath(tmpDir))

	t.Run("Load missing key", func(t *testing.T) {
		got, err := store.Load("solution:app")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != (UserSettings{}) {
			t.Errorf("Load() returned non-empty settings: %+v", got)
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		want := UserSettings{
			SourceName:        "nuget.org",
			IncludePrerelease: true,
			SelectedFilter:    models.FilterUpdates,
			Options:           ActionOptions{DependencyBehavior: "lowest"},
		}
		if err := store.Save("solution:app", want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load("solution:app")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != want {
			t.Errorf("Load() = %+v, want %+v", got, want)
		}
	})

	t.Run("Rename moves settings", func(t *testing.T) {
		if err := store.Rename("solution:app", "solution:renamed"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		old, _ := store.Load("solution:app")
		if old != (UserSettings{}) {
			t.Errorf("old key still has settings: %+v", old)
		}
		moved, _ := store.Load("solution:renamed")
		if moved.SourceName != "nuget.org" {
			t.Errorf("renamed key lost settings: %+v", moved)
		}
	})

	t.Run("Rename missing key is a no-op", func(t *testing.T) {
		if err := store.Rename("solution:none", "solution:other"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		keys, err := store.Keys()
		if err != nil {
			t.Fatalf("Keys() error = %v", err)
		}
		sort.Strings(keys)
		if len(keys) != 1 || keys[0] != "solution:renamed" {
			t.Errorf("Keys() = %v", keys)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete("solution:renamed"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		keys, _ := store.Keys()
		if len(keys) != 0 {
			t.Errorf("Keys() after delete = %v", keys)
		}
	})
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte("::not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(path).Load("any")
	if !pverrors.Is(err, pverrors.ErrCodeSettingsIO) {
		t.Errorf("expected settings IO error, got %v", err)
	}
}

func TestSurfaceKey(t *testing.T) {
	if got := SurfaceKey("Shop", nil); got != "solution:Shop" {
		t.Errorf("SurfaceKey(solution) = %s", got)
	}
	p := &models.ProjectRef{ID: "proj-7", Path: "/src/App.csproj"}
	if got := SurfaceKey("Shop", p); got != "project:/src/App.csproj" {
		t.Errorf("SurfaceKey(project) = %s", got)
	}
}
