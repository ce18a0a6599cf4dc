// Command recordstore runs marketplace and book-swap operations against the
// configured record store.
package main

import (
	"errors"
	"fmt"
	"os"

	"recordstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Rejected operations were already reported on stdout.
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) && exitErr.Code == cli.ExitFailure {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
