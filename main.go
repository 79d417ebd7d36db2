// Command laylash drives process creation, pipeline plumbing, job
// control, signal routing, terminal-state handoff, and command dispatch
// for a POSIX-style shell execution engine.
package main

import (
	"fmt"
	"os"

	"github.com/moisam/laylash-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
