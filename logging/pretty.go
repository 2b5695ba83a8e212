package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/tui/theme"
)

// PrettyLogger renders human-facing CLI output. Structured logs go through
// NewLogger; this is for results the user asked for.
type PrettyLogger struct {
	writer io.Writer
	theme  *theme.Theme
}

// NewPrettyLogger creates a pretty logger writing to stdout.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stdout,
		theme:  theme.DefaultTheme,
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

// Success logs a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.theme.Success.Render(theme.IconSuccess),
		p.theme.Success.Render(message))
}

// InfoPretty logs an info message with pretty formatting
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintf(p.writer, "%s\n", p.theme.Info.Render(message))
}

// WarnPretty logs a warning with pretty formatting
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.theme.Warning.Render(theme.IconWarning),
		p.theme.Warning.Render(message))
}

// ErrorPretty logs an error with pretty formatting
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s",
		p.theme.Error.Render(theme.IconError),
		p.theme.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", p.theme.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.writer)
}

// Field logs a key-value pair with pretty formatting
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.theme.Muted.Render(key),
		p.theme.Bold.Render(fmt.Sprint(value)))
}

// Path logs a file path with special formatting
func (p *PrettyLogger) Path(label string, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.theme.Muted.Render(label),
		p.theme.Path.Render(path))
}

// Package renders one search result row: id, installed and latest version,
// followed by badges for vulnerable, deprecated and transitive packages.
func (p *PrettyLogger) Package(item models.PackageSearchItem) {
	var b strings.Builder
	b.WriteString(p.theme.Bold.Render(item.Identity.ID))

	version := item.LatestVersion
	if version == "" {
		version = item.Identity.Version
	}
	if item.InstalledVersion != "" {
		b.WriteString(" " + p.theme.Muted.Render(item.InstalledVersion))
		if version != "" && version != item.InstalledVersion {
			b.WriteString(" " + p.theme.Update.Render(theme.IconArrow+" "+version))
		}
	} else if version != "" {
		b.WriteString(" " + p.theme.Muted.Render(version))
	}

	if item.IsVulnerable() {
		b.WriteString(" " + p.theme.Vulnerable.Render(theme.IconVulnerable+" vulnerable"))
	}
	if item.IsDeprecated() {
		b.WriteString(" " + p.theme.Deprecated.Render("deprecated"))
	}
	if item.Transitive {
		b.WriteString(" " + p.theme.Transitive.Render("(transitive)"))
	}
	fmt.Fprintln(p.writer, b.String())

	if item.Description != "" {
		fmt.Fprintf(p.writer, "  %s\n", p.theme.Muted.Render(item.Description))
	}
}

// Counts renders the derived counters as a single summary line.
func (p *PrettyLogger) Counts(c models.Counts) {
	fmt.Fprintf(p.writer, "%s %d  %s %d  %s %d  %s %d\n",
		p.theme.Muted.Render("updates"), c.Updates,
		p.theme.Muted.Render("vulnerable"), c.Vulnerable,
		p.theme.Muted.Render("deprecated"), c.Deprecated,
		p.theme.Muted.Render("consolidate"), c.Consolidate)
}

// Divider prints a visual divider
func (p *PrettyLogger) Divider() {
	fmt.Fprintln(p.writer, p.theme.Muted.Render(strings.Repeat("─", 60)))
}

// Blank prints a blank line
func (p *PrettyLogger) Blank() {
	fmt.Fprintln(p.writer)
}
