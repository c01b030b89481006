// Command maintctl administers the maintenance service: it seeds the rule
// catalog, regenerates and re-evaluates schedules, and creates staff accounts.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(mongoBackend).Execute(); err != nil {
		os.Exit(1)
	}
}
