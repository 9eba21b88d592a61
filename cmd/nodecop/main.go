// Package main provides the entry point for the nodecop CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/nodecop/cmd/nodecop/commands"
	"github.com/Sumatoshi-tech/nodecop/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewRootCommand()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
