// Package main provides the entry point for the ragindex CLI.
package main

import (
	"os"

	"github.com/ragindex/ragindex/cmd/ragindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
