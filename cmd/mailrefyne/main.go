// Package main is the entry point for the mailrefyne CLI.
package main

import (
	"os"

	"github.com/jmylchreest/mailrefyne/cmd/mailrefyne/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
