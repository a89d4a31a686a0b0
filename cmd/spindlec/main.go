// Command spindlec is the top-level driver spec.md §1 places out of
// scope for its hard engineering but still requires to exist: it
// wires lexing → parsing → checking → lowering → optimization →
// GraphViz dump (spec.md §6), via SPEC_FULL.md §6's Cobra-based
// build/watch subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/aledsdavies/spindlec/internal/cli"
)

// Exit code constants, the teacher's cmd/devcmd convention.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitFailure)
	}
	os.Exit(ExitSuccess)
}
