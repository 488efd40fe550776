// Package cmd implements the command-line interface for boxkite.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the Dropbox account as tools
//   - setup: Authorize the Dropbox account via the OAuth PKCE flow
//   - generate-key: Generate an encryption key for the token store
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
