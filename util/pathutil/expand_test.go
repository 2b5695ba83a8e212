package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Setenv("HOME", "/home/dev")

	assert.Equal(t, "/home/dev", ExpandHome("~"))
	assert.Equal(t, "/home/dev/catalog.yml", ExpandHome("~/catalog.yml"))
	assert.Equal(t, "~other/catalog.yml", ExpandHome("~other/catalog.yml"))

	assert.Equal(t, "", Resolve("/work", ""))
	assert.Equal(t, filepath.Join("/work", "app", "packages.yml"), Resolve("/work", "app/packages.yml"))
	assert.Equal(t, "/home/dev/packages.yml", Resolve("/work", "~/packages.yml"))
	assert.Equal(t, "/srv/catalog.yml", Resolve("/work", "/srv/./catalog.yml"))
}
