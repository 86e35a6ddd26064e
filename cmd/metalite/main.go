// Package main provides the metalite CLI application.
//
// metalite keeps a catalog of remote SQLite databases and queries them over
// SSH by running the sqlite3 tool on the remote host.
package main

import (
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
