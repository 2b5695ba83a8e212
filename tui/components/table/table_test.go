package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/pkgview/tui/theme"
)

func TestSelectableTableMarksSelectedRow(t *testing.T) {
	out := SelectableTable([]string{"PACKAGE", "VERSION"}, [][]string{
		{"Acme.Json", "1.0.0"},
		{"Acme.Http", "3.1.0"},
	}, 1)

	lines := strings.Split(out, "\n")
	var marked []string
	for _, l := range lines {
		if strings.Contains(l, theme.IconArrow) {
			marked = append(marked, l)
		}
	}
	if assert.Len(t, marked, 1) {
		assert.Contains(t, marked[0], "Acme.Http")
	}
}

func TestSelectableTableWithoutSelection(t *testing.T) {
	out := SelectableTable([]string{"PACKAGE"}, [][]string{{"Acme.Json"}}, -1)
	assert.NotContains(t, out, theme.IconArrow)
	assert.Contains(t, out, "Acme.Json")
}

func TestStatusTable(t *testing.T) {
	out := StatusTable([][]string{{"Updates", "2"}, {"ignored"}})
	assert.Contains(t, out, "Updates:")
	assert.Contains(t, out, "2")
	assert.NotContains(t, out, "ignored")
}
