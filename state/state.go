// Package state persists per-surface user settings in a YAML file keyed by
// surface, so each solution or project view restores its last source,
// filter and options.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	pverrors "github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

// ActionOptions are the options applied to install/uninstall/update actions.
type ActionOptions struct {
	DependencyBehavior string `yaml:"dependency_behavior,omitempty"`
	FileConflictAction string `yaml:"file_conflict_action,omitempty"`
	RemoveDependencies bool   `yaml:"remove_dependencies,omitempty"`
	ForceRemove        bool   `yaml:"force_remove,omitempty"`
}

// UserSettings is the persisted state of one surface.
type UserSettings struct {
	SourceName        string            `yaml:"source_name,omitempty"`
	IncludePrerelease bool              `yaml:"include_prerelease"`
	SelectedFilter    models.ItemFilter `yaml:"selected_filter,omitempty"`
	Options           ActionOptions     `yaml:"options,omitempty"`
}

// Store reads and writes the settings file. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns .pkgview/settings.yml under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, ".pkgview", "settings.yml")
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) readAll() (map[string]UserSettings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return make(map[string]UserSettings), nil
		}
		return nil, pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "read settings file").
			WithDetail("path", s.path)
	}

	var all map[string]UserSettings
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "parse settings file").
			WithDetail("path", s.path)
	}
	if all == nil {
		all = make(map[string]UserSettings)
	}
	return all, nil
}

func (s *Store) writeAll(all map[string]UserSettings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "create settings directory")
	}

	data, err := yaml.Marshal(all)
	if err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "marshal settings")
	}

	// Write through a temp file so a crash never leaves a truncated file behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "write settings file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeSettingsIO, "replace settings file")
	}
	return nil
}

// Load returns the settings stored under key, or zero settings when absent.
func (s *Store) Load(key string) (UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return UserSettings{}, err
	}
	return all[key], nil
}

// Save stores settings under key.
func (s *Store) Save(key string, settings UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[key] = settings
	return s.writeAll(all)
}

// Rename moves the settings stored under oldKey to newKey.
// It is a no-op when oldKey has no settings.
func (s *Store) Rename(oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	settings, ok := all[oldKey]
	if !ok {
		return nil
	}
	delete(all, oldKey)
	all[newKey] = settings
	return s.writeAll(all)
}

// Delete removes the settings stored under key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return s.writeAll(all)
}

// Keys returns every stored key. Used by diagnostics.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return keys, nil
}

// SurfaceKey returns the settings key of a solution or project surface.
func SurfaceKey(solutionName string, project *models.ProjectRef) string {
	if project == nil {
		return fmt.Sprintf("solution:%s", solutionName)
	}
	return fmt.Sprintf("project:%s", project.Path)
}
