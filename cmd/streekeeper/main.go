// Package main provides the entry point for the streekeeper CLI.
package main

import (
	"fmt"
	"os"

	"github.com/streekit/streekeeper/cmd/streekeeper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
