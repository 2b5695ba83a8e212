package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/grovetools/pkgview/errors"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config not found", errors.ConfigNotFound("/src"), "Configuration not found"},
		{"action in progress", errors.ActionInProgress(), "still running"},
		{"action failed", errors.ActionFailed("install", fmt.Errorf("disk full")), "'install' failed: disk full"},
		{"package", errors.PackageNotFound("Acme.Json"), "Package 'Acme.Json' is not in the catalog"},
		{"project", errors.ProjectNotFound("proj-9"), "Project 'proj-9'"},
		{"plain", fmt.Errorf("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &ErrorHandler{Out: &out}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var out bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &out}
	_ = h.Handle(errors.PackageNotFound("Acme.Json"))
	assert.Contains(t, out.String(), `"code": "PACKAGE_NOT_FOUND"`)
	assert.Nil(t, h.Handle(nil))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "short\n\nkept", wrapText("short\n\nkept", 20))
}

func TestParseDescription(t *testing.T) {
	desc, ex := parseDescription("Browse packages.\n\nExamples:\n  pkgview browse\n")
	assert.Equal(t, "Browse packages.", desc)
	assert.Equal(t, "pkgview browse", ex)
}

func TestStyledHelpListsCommandsAndFlags(t *testing.T) {
	root := NewStandardCommand("pkgview", "Browse packages")
	root.AddCommand(&cobra.Command{Use: "search", Short: "Run one search", Run: func(*cobra.Command, []string) {}})

	var out bytes.Buffer
	root.SetOut(&out)
	renderHelp(&out, root, 60)

	assert.Contains(t, out.String(), "PKGVIEW")
	assert.Contains(t, out.String(), "search")
	assert.Contains(t, out.String(), "--config")
}

func TestGetOptions(t *testing.T) {
	cmd := NewStandardCommand("pkgview", "Browse packages")
	assert.NoError(t, cmd.ParseFlags([]string{"--json", "-c", "/tmp/pkgview.yml"}))
	opts := GetOptions(cmd)
	assert.True(t, opts.JSONOutput)
	assert.False(t, opts.Verbose)
	assert.Equal(t, "/tmp/pkgview.yml", opts.ConfigFile)
}
