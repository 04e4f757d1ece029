// Command dockprep is the docking pipeline CLI: fetch structures, prepare
// receptors and ligands, resolve search boxes, run dockings, and serve as a
// queue worker.
package main

import (
	"os"

	"github.com/turtacn/dockprep/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// cli.Execute reports the failure on stderr; main only sets the exit code.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
