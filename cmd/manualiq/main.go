// Command manualiq is the entry point for the ManualIQ service-manual
// assistant. It provides a CLI interface (via Cobra) for ingestion and
// question answering, and an optional HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/manualiq-go/cmd/manualiq/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
