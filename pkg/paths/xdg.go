// Package paths resolves the pkgview config and state directories.
//
// Resolution order:
//  1. PKGVIEW_HOME → $PKGVIEW_HOME/{config,state}
//  2. XDG env vars → $XDG_{CONFIG,STATE}_HOME/pkgview
//  3. ~/.config/pkgview and ~/.local/state/pkgview
package paths

import (
	"os"
	"path/filepath"
)

const appName = "pkgview"

func resolve(sub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("PKGVIEW_HOME"); home != "" {
		return filepath.Join(home, sub)
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{home}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir holds the user-level pkgview.yml.
func ConfigDir() string {
	return resolve("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir holds settings for configurations that were not loaded from a file.
func StateDir() string {
	return resolve("state", "XDG_STATE_HOME", ".local", "state")
}
