package spindle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphvizEmitsValidDigraphWrapper(t *testing.T) {
	t.Parallel()

	f := buildAddFunc()

	var buf strings.Builder
	Graphviz(&buf, f)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph G {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "rankdir=BT;")
}

func TestGraphvizLabelsConstantWithItsValue(t *testing.T) {
	t.Parallel()

	f := buildAddFunc()

	var buf strings.Builder
	Graphviz(&buf, f)

	assert.Contains(t, buf.String(), `label="1"`)
	assert.Contains(t, buf.String(), `label="2"`)
}

func TestGraphvizRendersProjectionsAsTableCells(t *testing.T) {
	t.Parallel()

	f := buildAddFunc()

	var buf strings.Builder
	Graphviz(&buf, f)

	out := buf.String()
	assert.Contains(t, out, "START_CTRL")
	assert.Contains(t, out, "START_MEM")
	assert.Contains(t, out, "<table")
}

func TestGvLabelUsesKindForNonConstant(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	f.NewStart()
	alloca := f.Alloca()
	assert.Equal(t, "ALLOCA", gvLabel(alloca))
}
