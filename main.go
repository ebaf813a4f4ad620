// shelfcare is a pharmacy procurement assistant: it answers stock,
// order and expiry questions against PostgreSQL with a language model.
//
// Entry point: initializes the Cobra root command and launches the
// Bubble Tea chat UI by default (no subcommand required).
package main

import (
	"os"

	"github.com/DachengChen/shelfcare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
