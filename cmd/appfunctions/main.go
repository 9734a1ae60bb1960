// Command appfunctions serves a directory of app function metadata documents
// to agents over MCP, and inspects or validates them from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
