package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/grovetools/pkgview/pkg/models"
)

// CatalogConfig points at the local package catalog used as search backend.
type CatalogConfig struct {
	// Path is the catalog YAML file.
	Path string `yaml:"path" toml:"path" jsonschema:"required,description=Catalog YAML file"`
	// Latency is added to every backend call.
	Latency time.Duration `yaml:"latency,omitempty" toml:"latency,omitempty"`
}

// SolutionConfig describes the projects the browsing surface can see.
type SolutionConfig struct {
	Name     string              `yaml:"name" toml:"name"`
	Projects []models.ProjectRef `yaml:"projects" toml:"projects"`
}

// SurfaceConfig selects what the surface displays.
type SurfaceConfig struct {
	// Project is the id of the displayed project. Empty means the whole solution.
	Project string `yaml:"project,omitempty" toml:"project,omitempty"`
}

// EngineConfig tunes the refresh engine.
type EngineConfig struct {
	MetadataConcurrency int           `yaml:"metadata_concurrency,omitempty" toml:"metadata_concurrency,omitempty"`
	ConsolidateLimit    int           `yaml:"consolidate_limit,omitempty" toml:"consolidate_limit,omitempty"`
	MetadataCacheSize   int           `yaml:"metadata_cache_size,omitempty" toml:"metadata_cache_size,omitempty"`
	MetadataCacheTTL    time.Duration `yaml:"metadata_cache_ttl,omitempty" toml:"metadata_cache_ttl,omitempty"`
	MailboxSize         int           `yaml:"mailbox_size,omitempty" toml:"mailbox_size,omitempty"`
}

// SettingsConfig configures user settings persistence.
type SettingsConfig struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// ServerConfig configures the HTTP endpoint serving metrics, the surface
// state and remote events.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Address string `yaml:"address,omitempty" toml:"address,omitempty"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// IsEnabled defaults to true.
func (w WatchConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Config is the pkgview configuration file.
type Config struct {
	Version      string                    `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Sources      []models.SourceRepository `yaml:"sources" toml:"sources"`
	ActiveSource string                    `yaml:"active_source,omitempty" toml:"active_source,omitempty"`
	Catalog      CatalogConfig             `yaml:"catalog" toml:"catalog" jsonschema:"required"`
	Solution     SolutionConfig            `yaml:"solution" toml:"solution"`
	Surface      SurfaceConfig             `yaml:"surface,omitempty" toml:"surface,omitempty"`
	Engine       EngineConfig              `yaml:"engine,omitempty" toml:"engine,omitempty"`
	Settings     SettingsConfig            `yaml:"settings,omitempty" toml:"settings,omitempty"`
	Server       ServerConfig              `yaml:"server,omitempty" toml:"server,omitempty"`
	Watch        WatchConfig               `yaml:"watch,omitempty" toml:"watch,omitempty"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`

	// path is the file the configuration was loaded from.
	path string
}

// Path returns the file this configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Solution.Name == "" {
		c.Solution.Name = "solution"
	}
	if c.Engine.MetadataConcurrency <= 0 {
		c.Engine.MetadataConcurrency = 8
	}
	if c.Engine.ConsolidateLimit <= 0 {
		c.Engine.ConsolidateLimit = 100
	}
	if c.Engine.MetadataCacheSize <= 0 {
		c.Engine.MetadataCacheSize = 1024
	}
	if c.Engine.MetadataCacheTTL <= 0 {
		c.Engine.MetadataCacheTTL = 30 * time.Minute
	}
	if c.Engine.MailboxSize <= 0 {
		c.Engine.MailboxSize = 256
	}
	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:9464"
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 100 * time.Millisecond
	}
	if c.ActiveSource == "" {
		c.ActiveSource = models.AggregateSourceName
	}
}

// EnabledSources returns the sources that are not disabled.
func (c *Config) EnabledSources() []models.SourceRepository {
	var result []models.SourceRepository
	for _, s := range c.Sources {
		if s.IsEnabled() {
			result = append(result, s)
		}
	}
	return result
}

// SurfaceProject returns the project the surface displays, or nil for a solution surface.
func (c *Config) SurfaceProject() *models.ProjectRef {
	if c.Surface.Project == "" {
		return nil
	}
	for i := range c.Solution.Projects {
		if c.Solution.Projects[i].ID == c.Surface.Project {
			p := c.Solution.Projects[i]
			return &p
		}
	}
	return nil
}

// UnmarshalExtension decodes the configuration for a specific extension key
// into the provided target struct.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		TagName:    "yaml",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
