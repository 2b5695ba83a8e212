// Package scrollbar draws a vertical scroll indicator for paged lists.
package scrollbar

import (
	"strings"

	"github.com/grovetools/pkgview/tui/theme"
)

const (
	thumb = "█"
	track = "░"
)

// Generate returns one scrollbar cell per line of height for a list of total
// rows, of which visible rows starting at offset are on screen.
func Generate(height, total, visible, offset int) []string {
	if height <= 0 {
		return []string{}
	}
	muted := theme.DefaultTheme.Muted
	bar := make([]string, height)

	if total == 0 {
		for i := range bar {
			bar[i] = " "
		}
		return bar
	}
	if total <= visible {
		for i := range bar {
			bar[i] = muted.Render(thumb)
		}
		return bar
	}

	thumbSize := max(1, height*visible/total)
	maxStart := height - thumbSize
	maxOffset := total - visible
	offset = min(max(offset, 0), maxOffset)
	thumbStart := min(max(int(float64(maxStart)*float64(offset)/float64(maxOffset)+0.5), 0), maxStart)

	for i := range bar {
		if i >= thumbStart && i < thumbStart+thumbSize {
			bar[i] = muted.Render(thumb)
		} else {
			bar[i] = muted.Render(track)
		}
	}
	return bar
}

// Overlay appends a scrollbar cell to every line of content.
func Overlay(content string, total, visible, offset int) string {
	lines := strings.Split(content, "\n")
	bar := Generate(len(lines), total, visible, offset)
	for i := range lines {
		lines[i] += " " + bar[i]
	}
	return strings.Join(lines, "\n")
}
