package config

import (
	"fmt"
	"strings"

	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/pkg/models"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	seenSources := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Name == "" {
			return errors.ConfigInvalid("source name cannot be empty")
		}
		if strings.EqualFold(s.Name, models.AggregateSourceName) {
			return errors.ConfigInvalid(fmt.Sprintf("source name '%s' is reserved", s.Name)).
				WithDetail("source", s.Name)
		}
		key := strings.ToLower(s.Name)
		if seenSources[key] {
			return errors.ConfigInvalid(fmt.Sprintf("duplicate source '%s'", s.Name)).
				WithDetail("source", s.Name)
		}
		seenSources[key] = true
	}

	if c.ActiveSource != "" && !strings.EqualFold(c.ActiveSource, models.AggregateSourceName) && !seenSources[strings.ToLower(c.ActiveSource)] {
		return errors.ConfigInvalid(fmt.Sprintf("active_source '%s' is not a configured source", c.ActiveSource)).
			WithDetail("source", c.ActiveSource)
	}

	seenProjects := make(map[string]bool)
	for _, p := range c.Solution.Projects {
		if p.ID == "" {
			return errors.ConfigInvalid("project id cannot be empty")
		}
		if p.Path == "" {
			return errors.ConfigInvalid(fmt.Sprintf("project '%s' has no path", p.ID)).
				WithDetail("project", p.ID)
		}
		if seenProjects[p.ID] {
			return errors.ConfigInvalid(fmt.Sprintf("duplicate project id '%s'", p.ID)).
				WithDetail("project", p.ID)
		}
		seenProjects[p.ID] = true
	}

	if c.Surface.Project != "" && !seenProjects[c.Surface.Project] {
		return errors.ConfigInvalid(fmt.Sprintf("surface project '%s' is not part of the solution", c.Surface.Project)).
			WithDetail("project", c.Surface.Project)
	}

	if c.Engine.ConsolidateLimit < 0 || c.Engine.MetadataConcurrency < 0 {
		return errors.ConfigInvalid("engine limits cannot be negative")
	}

	return nil
}
