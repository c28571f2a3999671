// storectl - command-line client for the web file storage service
package main

import (
	"os"

	"github.com/webstorage/storectl/internal/cli"
	"github.com/webstorage/storectl/internal/version"
)

// Version information, overridden by -ldflags at release build time
var (
	Version   = "v0.3.0"
	BuildTime = "2026-10-19"
)

func main() {
	// Set version in version package (canonical source for all packages)
	// and CLI package (shown by --version and the shell banner)
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
