// Package main is the entry point for the pulsectl CLI, the terminal tool
// for starting scans and inspecting results over the engine's HTTP API.
package main

import (
	"os"

	"github.com/pulsewatch/pulsewatch/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
