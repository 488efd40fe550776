package files_tools

import (
	"fmt"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/server"
)

// getClient retrieves the Dropbox client from the server context.
// The client is nil until the account has been authorized.
func getClient(sc *server.ServerContext) (*dropbox.Client, error) {
	client := sc.DropboxClient()
	if client == nil {
		return nil, fmt.Errorf("not authenticated: run 'boxkite setup' to authorize the Dropbox account")
	}
	return client, nil
}

// RegisterFilesTools registers all file browsing and modification tools
// with the MCP server.
func RegisterFilesTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := registerReadTools(s, sc); err != nil {
		return fmt.Errorf("failed to register read tools: %w", err)
	}

	if !readOnly {
		if err := registerWriteTools(s, sc); err != nil {
			return fmt.Errorf("failed to register write tools: %w", err)
		}
	}

	return nil
}

// parseCommaList parses a comma-separated list of strings
func parseCommaList(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
