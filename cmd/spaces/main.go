package main

import (
	"github.com/mocraimer/chrome-spaces/internal/cli/cmd"
)

// Build information set via ldflags
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetBuildInfo(cmd.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    buildDate,
	})
	cmd.Execute()
}
