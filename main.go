// nestprog checksums files and directories while reporting a single
// overall progress built from nested phases
package main

import (
	"os"

	"github.com/andpalmier/nestprog/cmd"
)

// Version information (set at build time via -ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cmd.Execute(version, commit, date))
}
