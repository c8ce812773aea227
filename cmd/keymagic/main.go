// Command keymagic loads, compiles and exercises KeyMagic keyboards.
package main

import (
	"fmt"
	"os"

	"github.com/keymagic/keymagic/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
