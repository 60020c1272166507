// Package main provides the entry point for the sourcelens CLI.
package main

import (
	"os"

	"github.com/sourcelens/sourcelens/cmd/sourcelens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
