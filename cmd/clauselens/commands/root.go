// Package commands defines all Cobra CLI commands for the clauselens binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens-go/internal/audit"
	"github.com/clauselens/clauselens-go/internal/config"
	"github.com/clauselens/clauselens-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clauselens",
		Short: "ClauseLens - retrieval-augmented QA for legal and insurance documents",
		Long: `ClauseLens answers questions about legal and insurance documents.

A document is uploaded by URL or file, split into chunks, embedded, and
indexed into Qdrant. Subsequent requests retrieve the relevant chunks and
delegate to a language model for question answering, summarization, and
risk-clause analysis.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.clauselens/config.yaml).
See 'clauselens --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.clauselens/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
