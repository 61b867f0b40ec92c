// Package commands defines all Cobra CLI commands for the manualiq binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/manualiq-go/internal/audit"
	"github.com/54b3r/manualiq-go/internal/config"
	"github.com/54b3r/manualiq-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "manualiq",
		Short: "ManualIQ — question answering over indexed equipment service manuals",
		Long: `ManualIQ is a retrieval-augmented assistant for heavy-equipment service manuals.

It ingests parsed manual pages into a Qdrant vector store with five vector
representations per page, answers maintenance questions by decomposing them
into section-anchored sub-questions, retrieving each one concurrently, and
synthesizing a cited answer with table and figure references.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.manualiq/config.yaml).
See 'manualiq --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.manualiq/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
