// Command tackle drives one device's tackleshop state from the terminal.
package main

import (
	"fmt"
	"os"

	"tackleshop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
