package main

import (
	"os"

	"github.com/go-delve/dwarfscan/cmd/dwarfscan/cmds"
	"github.com/go-delve/dwarfscan/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.DwarfscanVersion.Build = Build
	}

	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
