package theme

import (
	"os"

	"github.com/grovetools/pkgview/config"
)

// Nerd Font Icons (Private Constants)
const (
	nerdIconSuccess    = "󰄬" // md-check (U+F012C)
	nerdIconError      = "" // cod-error (U+EA87)
	nerdIconWarning    = "" // fa-warning (U+F071)
	nerdIconInfo       = "󰋼" // md-information (U+F02FC)
	nerdIconRunning    = "" // fa-refresh (U+F021)
	nerdIconSelect     = "󰱒" // md-checkbox_outline (U+F0C52)
	nerdIconArrow      = "󰁔" // md-arrow_right (U+F0054)
	nerdIconFilter     = "󱣬" // md-filter_check (U+F18EC)
	nerdIconPackage    = "" // oct-package (U+F487)
	nerdIconVulnerable = "󰒃" // md-shield_alert (U+F0493)
	nerdIconDeprecated = "󰩹" // md-trash_can (U+F0A79)
	nerdIconProject    = "" // cod-project (U+EB30)
)

// ASCII Fallback Icons (Private Constants)
const (
	asciiIconSuccess    = "✓"
	asciiIconError      = "✗"
	asciiIconWarning    = "⚠"
	asciiIconInfo       = "ℹ"
	asciiIconRunning    = "◐"
	asciiIconSelect     = "▶"
	asciiIconArrow      = "→"
	asciiIconFilter     = "≡"
	asciiIconPackage    = "▣"
	asciiIconVulnerable = "!"
	asciiIconDeprecated = "×"
	asciiIconProject    = "◆"
)

var (
	IconSuccess    string
	IconError      string
	IconWarning    string
	IconInfo       string
	IconRunning    string
	IconSelect     string
	IconArrow      string
	IconFilter     string
	IconPackage    string
	IconVulnerable string
	IconDeprecated string
	IconProject    string
)

// init function determines which icon set to use
func init() {
	useASCII := false

	if os.Getenv("PKGVIEW_ICONS") == "ascii" {
		useASCII = true
	} else if cfg, err := config.LoadDefault(); err == nil {
		var tuiCfg struct {
			Icons string `yaml:"icons"`
		}
		if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil && tuiCfg.Icons == "ascii" {
			useASCII = true
		}
	}

	if useASCII {
		IconSuccess = asciiIconSuccess
		IconError = asciiIconError
		IconWarning = asciiIconWarning
		IconInfo = asciiIconInfo
		IconRunning = asciiIconRunning
		IconSelect = asciiIconSelect
		IconArrow = asciiIconArrow
		IconFilter = asciiIconFilter
		IconPackage = asciiIconPackage
		IconVulnerable = asciiIconVulnerable
		IconDeprecated = asciiIconDeprecated
		IconProject = asciiIconProject
	} else {
		IconSuccess = nerdIconSuccess
		IconError = nerdIconError
		IconWarning = nerdIconWarning
		IconInfo = nerdIconInfo
		IconRunning = nerdIconRunning
		IconSelect = nerdIconSelect
		IconArrow = nerdIconArrow
		IconFilter = nerdIconFilter
		IconPackage = nerdIconPackage
		IconVulnerable = nerdIconVulnerable
		IconDeprecated = nerdIconDeprecated
		IconProject = nerdIconProject
	}
}
