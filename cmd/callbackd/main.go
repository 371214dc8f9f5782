// callbackd - bridge between a message bus and GraphQL callback
// subscriptions.
package main

import (
	"github.com/callbackd/callbackd/pkg/cli"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
