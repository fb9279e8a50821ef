// taskin: markdown task lifecycle, linting, metrics and live sync.
//
// Usage:
//
//	taskin start 001         # move a task to in-progress
//	taskin lint --fix        # repair and validate every task document
//	taskin stats --user jane # metrics for one person
//	taskin serve             # WebSocket sync server
//	taskin mcp               # MCP bridge on stdio
package main

import (
	"os"

	"github.com/opentask/taskin/internal/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
