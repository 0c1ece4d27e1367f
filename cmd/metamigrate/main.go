// Command metamigrate copies metaobject definitions and instances from one
// store to another.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/metamigrate/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
