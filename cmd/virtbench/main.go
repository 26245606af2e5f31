package main

import (
	"fmt"
	"os"

	"github.com/virtbench/virtbench/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Subcommands silence cobra's own error printing and report
		// through their formatters; anything surfacing here still needs
		// one line on stderr (flag errors, unknown commands).
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
