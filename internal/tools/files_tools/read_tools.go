package files_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/instrumentation"
	"github.com/boxkite-mcp/boxkite/internal/server"
	"github.com/boxkite-mcp/boxkite/internal/tools/batch"
	"github.com/boxkite-mcp/boxkite/internal/tools/common"
)

// registerReadTools registers tools that never modify account state
func registerReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// List folder tool
	listFolderTool := mcp.NewTool("files_list_folder",
		mcp.WithDescription("List the contents of a folder in the Dropbox account"),
		mcp.WithString("path",
			mcp.Description("Folder path to list (empty or '/' for the root)"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("List the full subtree instead of a single level (default: false)"),
		),
		mcp.WithBoolean("includeDeleted",
			mcp.Description("Include deleted entries in the results (default: false)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries per page (provider max: 2000)"),
		),
		mcp.WithString("cursor",
			mcp.Description("Cursor from a previous page; when set, all other arguments are ignored"),
		),
	)

	s.AddTool(listFolderTool, common.InstrumentedToolHandlerWithOperation("files_list_folder", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			client, err := getClient(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			if cursor, ok := args["cursor"].(string); ok && cursor != "" {
				page, err := client.ListFolderContinue(ctx, cursor)
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("Failed to continue listing: %v", err)), nil
				}
				result, _ := json.MarshalIndent(page, "", "  ")
				return mcp.NewToolResultText(string(result)), nil
			}

			path := common.GetPathFromArgs(args)
			options := &dropbox.ListOptions{}

			if recursive, ok := args["recursive"].(bool); ok {
				options.Recursive = recursive
			}
			if includeDeleted, ok := args["includeDeleted"].(bool); ok {
				options.IncludeDeleted = includeDeleted
			}
			if limit, ok := args["limit"].(float64); ok && limit > 0 {
				options.Limit = int(limit)
			}

			page, err := client.ListFolder(ctx, path, options)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to list folder: %v", err)), nil
			}

			result, _ := json.MarshalIndent(page, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))

	// Get metadata tool
	getMetadataTool := mcp.NewTool("files_get_metadata",
		mcp.WithDescription("Get metadata for one or more files or folders in the Dropbox account"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path (string) or array of paths to retrieve"),
		),
	)

	s.AddTool(getMetadataTool, common.InstrumentedToolHandlerWithOperation("files_get_metadata", instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			paths, err := batch.ParseStringOrArray(args["path"], "path")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			client, err := getClient(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			if len(paths) == 1 {
				meta, err := client.GetMetadata(ctx, paths[0])
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("Failed to get metadata: %v", err)), nil
				}
				result, _ := json.MarshalIndent(meta, "", "  ")
				return mcp.NewToolResultText(string(result)), nil
			}

			results := batch.ProcessBatch(paths, func(path string) (string, error) {
				meta, err := client.GetMetadata(ctx, path)
				if err != nil {
					return "", err
				}
				jsonBytes, _ := json.Marshal(meta)
				return string(jsonBytes), nil
			})

			return mcp.NewToolResultText(batch.FormatResults(results)), nil
		}))

	// Search tool
	searchTool := mcp.NewTool("files_search",
		mcp.WithDescription("Search for files and folders by name in the Dropbox account"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithString("pathScope",
			mcp.Description("Restrict results to this subtree (default: entire account)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of matches to return (provider max: 1000)"),
		),
		mcp.WithString("fileExtensions",
			mcp.Description("Comma-separated list of file extensions to match (e.g. 'pdf,docx')"),
		),
	)

	s.AddTool(searchTool, common.InstrumentedToolHandlerWithOperation("files_search", instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			query, ok := args["query"].(string)
			if !ok || query == "" {
				return mcp.NewToolResultError("query is required"), nil
			}

			client, err := getClient(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			options := &dropbox.SearchOptions{}
			if pathScope, ok := args["pathScope"].(string); ok && pathScope != "" {
				options.PathScope = pathScope
			}
			if maxResults, ok := args["maxResults"].(float64); ok && maxResults > 0 {
				options.MaxResults = int(maxResults)
			}
			if extensions, ok := args["fileExtensions"].(string); ok && extensions != "" {
				options.FileExtensions = parseCommaList(extensions)
			}

			matches, err := client.Search(ctx, query, options)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to search: %v", err)), nil
			}

			result, _ := json.MarshalIndent(matches, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))

	// Download tool
	downloadTool := mcp.NewTool("files_download",
		mcp.WithDescription("Download the content of a file from the Dropbox account"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file to download"),
		),
		mcp.WithBoolean("asBase64",
			mcp.Description("Return content as a base64-encoded string (default: false for text)"),
		),
	)

	s.AddTool(downloadTool, common.InstrumentedToolHandlerWithOperation("files_download", instrumentation.OperationDownload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownload(ctx, request, sc)
		}))

	// Temporary link tool
	tempLinkTool := mcp.NewTool("files_get_temporary_link",
		mcp.WithDescription("Get a short-lived direct download link for a file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file"),
		),
	)

	s.AddTool(tempLinkTool, common.InstrumentedToolHandlerWithOperation("files_get_temporary_link", instrumentation.OperationLink, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, ok := args["path"].(string)
			if !ok || path == "" {
				return mcp.NewToolResultError("path is required"), nil
			}

			client, err := getClient(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			link, err := client.GetTemporaryLink(ctx, path)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to get temporary link: %v", err)), nil
			}

			result, _ := json.MarshalIndent(link, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))

	return nil
}

// handleDownload handles the files_download tool
func handleDownload(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	asBase64 := false
	if asB64, ok := args["asBase64"].(bool); ok {
		asBase64 = asB64
	}

	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reader, meta, err := client.Download(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to download file: %v", err)), nil
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read content: %v", err)), nil
	}

	// Metadata is nil when the result header is missing.
	name := path
	if meta != nil {
		name = meta.Name
	}

	if asBase64 {
		encoded := base64.StdEncoding.EncodeToString(content)
		return mcp.NewToolResultText(fmt.Sprintf("File %s (base64, %d bytes):\n%s", name, len(content), encoded)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("File %s (text, %d bytes):\n%s", name, len(content), string(content))), nil
}
