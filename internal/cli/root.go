// Package cli implements the pubflow command line interface over a local
// SQLite-backed ledger.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database is the path of the SQLite ledger.
	Database string

	// Profile is the profile topic id commands operate on.
	Profile string

	// Account is the operator account authorizing writes.
	Account string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pubflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pubflow",
		Short: "Waypost publish flows over a local ledger",
		Long: `pubflow publishes channels and groups into ledger topics and keeps the
owning profile's list topics consistent, using the same workflow engine the
Waypost app runs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (required)")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "profile topic id")
	cmd.PersistentFlags().StringVar(&opts.Account, "account", "0.0.2", "operator account id")

	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewListsCommand(opts))
	cmd.AddCommand(NewTopicsCommand(opts))

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
