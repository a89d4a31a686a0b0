package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Following the teacher's own runtime/cli package (no unit tests for
// its Cobra wiring), this is a thin sanity check rather than exhaustive
// coverage: the command tree is mostly exercised by running the binary.
func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["build"])
	assert.True(t, names["watch"])
}

func TestNewRootCommandDefaultFlags(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	f := root.PersistentFlags()

	val, err := f.GetString("config")
	assert.NoError(t, err)
	assert.Equal(t, "spindlec.yaml", val)

	noCache, err := f.GetBool("no-cache")
	assert.NoError(t, err)
	assert.False(t, noCache)
}
