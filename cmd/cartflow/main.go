// Command cartflow inspects the cart field graph and runs checkout scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cartflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
