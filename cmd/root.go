package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the boxkite application
var rootCmd = &cobra.Command{
	Use:   "boxkite",
	Short: "MCP server for a Dropbox account with deletion safety rails",
	Long: `boxkite exposes a Dropbox account to AI assistants as an MCP
(Model Context Protocol) server.

Deletions go through a policy engine: path allow/block lists, a per-user
daily quota, and a confirmation-gated recycle bin with retention. The
server runs read-only unless write operations are explicitly enabled.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "boxkite version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSetupCmd())
	rootCmd.AddCommand(newGenerateKeyCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
