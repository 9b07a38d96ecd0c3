// Package main is the entry point for the pipelab CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tOgg1/pipelab/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var setupErr *cli.TerminalSetupError
		if errors.As(err, &setupErr) && setupErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", setupErr.Hint)
		}
		os.Exit(1)
	}
}
