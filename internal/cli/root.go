package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/migrate"
)

// RootOptions holds global flags for all commands, plus the hooks tests use
// to replace the process environment and the remote stores.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	Journal string

	// Getenv is handed to config.Load. Defaults to os.Getenv.
	Getenv func(string) string

	// Connect opens a store's Admin API. Defaults to the GraphQL client.
	Connect Connector

	// Logger replaces the logger built from --verbose.
	Logger *zap.Logger

	// RunIDs overrides the journal run-ID generator. Defaults to UUIDv7.
	RunIDs migrate.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the metamigrate CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith creates the root command around opts. Unset hooks get
// their process defaults.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Connect == nil {
		opts.Connect = connectShopify
	}

	cmd := &cobra.Command{
		Use:   "metamigrate",
		Short: "Migrate metaobject definitions and instances between stores",
		Long: `metamigrate copies metaobject definitions and their instances from a
source store to a destination store.

A migration runs in four steps:
  metamigrate snapshot      export the source store to disk
  metamigrate plan          order the definitions by their references
  metamigrate definitions   create the definitions, then add deferred fields
  metamigrate metaobjects   upsert every instance with references rewritten

Store endpoints and tokens come from the environment (SHOPIFY_STORE_URL,
SHOPIFY_ACCESS_TOKEN, DEST_SHOPIFY_STORE_URL, DEST_SHOPIFY_ACCESS_TOKEN) or
from the file given with --config.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (overrides config)")

	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewDefinitionsCommand(opts))
	cmd.AddCommand(NewMetaobjectsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
