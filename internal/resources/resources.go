package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/server"
)

// RegisterResources registers the server's MCP resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	authStatusResource := mcp.NewResource(
		"boxkite://auth/status",
		"Authentication Status",
		mcp.WithResourceDescription("Status of the Dropbox credential: scopes, expiry and refresh state. Contains no token material."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(authStatusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAuthStatus(ctx, request, sc)
	})

	recycleBinResource := mcp.NewResource(
		"boxkite://recycle-bin",
		"Recycle Bin",
		mcp.WithResourceDescription("Contents of the recycle bin with parsed version identifiers"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(recycleBinResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleRecycleBin(ctx, request, sc)
	})

	return nil
}

// handleAuthStatus returns the credential snapshot as JSON.
func handleAuthStatus(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	manager := sc.AuthManager()
	if manager == nil {
		return nil, fmt.Errorf("no auth manager configured")
	}

	jsonData, err := json.MarshalIndent(manager.Status(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth status: %w", err)
	}

	return textContents(request, jsonData), nil
}

// recycleEntry is one recycle bin item with the version ID and original
// base name parsed out of the recycle file name.
type recycleEntry struct {
	VersionID   string    `json:"versionId,omitempty"`
	Name        string    `json:"name"`
	RecyclePath string    `json:"recyclePath"`
	Size        int64     `json:"size,omitempty"`
	Deleted     time.Time `json:"deleted,omitzero"`
}

// handleRecycleBin lists the recycle folder. A missing folder means
// nothing has been soft deleted yet and yields an empty listing.
func handleRecycleBin(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client := sc.DropboxClient()
	engine := sc.PolicyEngine()
	if client == nil || engine == nil {
		return nil, fmt.Errorf("not authenticated: run 'boxkite setup' to authorize the Dropbox account")
	}

	entries := []recycleEntry{}
	page, err := client.ListFolder(ctx, engine.RecycleBinPath(), &dropbox.ListOptions{})
	if err != nil && !dropbox.IsNotFound(err) {
		return nil, fmt.Errorf("failed to list recycle bin: %w", err)
	}

	for page != nil {
		for _, meta := range page.Entries {
			entries = append(entries, parseRecycleEntry(meta))
		}
		if !page.HasMore {
			break
		}
		page, err = client.ListFolderContinue(ctx, page.Cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list recycle bin: %w", err)
		}
	}

	listing := map[string]interface{}{
		"path":    engine.RecycleBinPath(),
		"entries": entries,
	}

	jsonData, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recycle bin listing: %w", err)
	}

	return textContents(request, jsonData), nil
}

// parseRecycleEntry splits a recycle file name of the form
// "{versionID}_{basename}" back into its parts. Names without a version
// prefix are listed as-is.
func parseRecycleEntry(meta *dropbox.Metadata) recycleEntry {
	entry := recycleEntry{
		Name:        meta.Name,
		RecyclePath: meta.PathDisplay,
		Size:        meta.Size,
		Deleted:     meta.ServerModified,
	}
	if versionID, name, ok := strings.Cut(meta.Name, "_"); ok && versionID != "" && name != "" {
		entry.VersionID = versionID
		entry.Name = name
	}
	return entry
}

func textContents(request mcp.ReadResourceRequest, jsonData []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}
}
