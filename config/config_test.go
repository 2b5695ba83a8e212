package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

const yamlConfig = `
sources:
  - name: nuget.org
    url: https://api.nuget.org/v3/index.json
  - name: internal
    url: ${INTERNAL_FEED:-https://feed.internal/v3}
    enabled: false
active_source: nuget.org
catalog:
  path: catalog.yml
  latency: 250ms
solution:
  name: Shop
  projects:
    - id: proj-7
      name: Shop.Web
      path: web/packages.yml
    - id: proj-42
      name: Shop.Core
      path: /abs/core/packages.yml
surface:
  project: proj-7
logging:
  level: debug
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pkgview.yml", yamlConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "https://feed.internal/v3", cfg.Sources[1].URL)
	assert.Len(t, cfg.EnabledSources(), 1)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.Latency)
	assert.Equal(t, filepath.Join(dir, "catalog.yml"), cfg.Catalog.Path)
	assert.Equal(t, filepath.Join(dir, "web", "packages.yml"), cfg.Solution.Projects[0].Path)
	assert.Equal(t, "/abs/core/packages.yml", cfg.Solution.Projects[1].Path)

	project := cfg.SurfaceProject()
	require.NotNil(t, project)
	assert.Equal(t, "Shop.Web", project.Name)

	// Defaults
	assert.Equal(t, 100, cfg.Engine.ConsolidateLimit)
	assert.Equal(t, 8, cfg.Engine.MetadataConcurrency)
	assert.True(t, cfg.Watch.IsEnabled())

	// Extensions
	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	require.NoError(t, cfg.UnmarshalExtension("missing", &logCfg))
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pkgview.toml", `
active_source = "All"

[[sources]]
name = "nuget.org"
url = "https://api.nuget.org/v3/index.json"

[catalog]
path = "catalog.yml"
latency = "1s"

[solution]
name = "Shop"

[[solution.projects]]
id = "proj-7"
name = "Shop.Web"
path = "web/packages.yml"

[engine]
consolidate_limit = 5

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.AggregateSourceName, cfg.ActiveSource)
	assert.Equal(t, time.Second, cfg.Catalog.Latency)
	assert.Equal(t, 5, cfg.Engine.ConsolidateLimit)
	require.Len(t, cfg.Solution.Projects, 1)
	assert.Equal(t, "proj-7", cfg.Solution.Projects[0].ID)
	assert.Nil(t, cfg.SurfaceProject())

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "warn", logCfg.Level)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		config string
	}{
		{"reserved source name", "sources:\n  - name: All\n"},
		{"duplicate source", "sources:\n  - name: a\n  - name: A\n"},
		{"unknown active source", "active_source: nope\n"},
		{"project without path", "solution:\n  projects:\n    - id: p1\n"},
		{"unknown surface project", "surface:\n  project: p9\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.config))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	want := writeFile(t, root, "pkgview.yml", "version: \"1.0\"\n")

	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(filepath.Join(root, "missing.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestSchema(t *testing.T) {
	s := Schema()
	assert.Equal(t, "object", s.Type)
	assert.Nil(t, s.AdditionalProperties)
	assert.Contains(t, s.Required, "catalog")
	assert.NotContains(t, s.Required, "version")

	_, ok := s.Properties.Get("extensions")
	assert.False(t, ok)
	_, ok = s.Properties.Get("watch")
	assert.True(t, ok)

	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"debounce"`)
}
