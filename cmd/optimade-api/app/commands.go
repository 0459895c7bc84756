// Package app provides the entry point for the OPTIMADE index server application.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/optimade-server/internal/versions"
)

// NewRootCmd creates a new root command for the OPTIMADE index server.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "optimade-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "OPTIMADE index meta-database server",
		Long: `optimade-api serves an OPTIMADE index meta-database: the /info and /links endpoints
that point clients at the databases of a provider. Query parameter names are checked
against the parameters each endpoint accepts and the provider prefixes registered
with OPTIMADE.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckParamsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			switch format {
			case "json":
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			case "":
				_, err = fmt.Fprintf(cmd.OutOrStdout(),
					"optimade-api %s (commit %s, built %s, %s, %s, OPTIMADE API %s)\n",
					info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform, info.APIVersion)
				return err
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
