// Command pubflow publishes channels and groups into a local ledger and
// keeps the owning profile's list topics consistent.
package main

import (
	"fmt"
	"os"

	"github.com/waypost-app/pubflow/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
