package main

import (
	"os"

	"github.com/babarot/stowage/internal/cli"
)

// set by -ldflags at release time
var (
	version   = "unset"
	revision  = "unset"
	buildDate = "unset"
)

func main() {
	if err := cli.Run(cli.Version{
		AppName:   "stowage",
		Version:   version,
		Revision:  revision,
		BuildDate: buildDate,
	}); err != nil {
		os.Exit(1)
	}
}
