// Command cardcheck preprocesses card component sources, runs card scenarios
// and decodes assertion status words back to source lines.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cardcheck/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cardcheck:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
