package files_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/instrumentation"
	"github.com/boxkite-mcp/boxkite/internal/server"
	"github.com/boxkite-mcp/boxkite/internal/tools/common"
)

// registerWriteTools registers tools that modify account state. The
// caller only invokes this when read-only mode is off.
func registerWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Upload tool
	uploadTool := mcp.NewTool("files_upload",
		mcp.WithDescription("Upload a file to the Dropbox account"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Destination path for the file"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The file content (base64-encoded for binary files, or plain text)"),
		),
		mcp.WithBoolean("isBase64",
			mcp.Description("Whether the content is base64-encoded (default: false)"),
		),
		mcp.WithString("mode",
			mcp.Description("Write mode: 'add' (default), 'overwrite', or 'update'"),
		),
		mcp.WithBoolean("autorename",
			mcp.Description("Let the provider resolve naming conflicts (default: false)"),
		),
	)

	s.AddTool(uploadTool, common.InstrumentedToolHandlerWithOperation("files_upload", instrumentation.OperationUpload, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, ok := args["path"].(string)
			if !ok || path == "" {
				return mcp.NewToolResultError("path is required"), nil
			}

			contentStr, ok := args["content"].(string)
			if !ok {
				return mcp.NewToolResultError("content is required"), nil
			}

			client, err := getClient(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			options := &dropbox.UploadOptions{}
			if mode, ok := args["mode"].(string); ok && mode != "" {
				options.Mode = mode
			}
			if autorename, ok := args["autorename"].(bool); ok {
				options.Autorename = autorename
			}

			content := contentStr
			if isB64, ok := args["isBase64"].(bool); ok && isB64 {
				decoded, err := base64.StdEncoding.DecodeString(contentStr)
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("Failed to decode base64 content: %v", err)), nil
				}
				content = string(decoded)
			}

			meta, err := client.Upload(ctx, path, strings.NewReader(content), options)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to upload file: %v", err)), nil
			}

			result, _ := json.MarshalIndent(meta, "", "  ")
			return mcp.NewToolResultText(fmt.Sprintf("File uploaded successfully:\n%s", string(result))), nil
		}))

	// Move tool
	moveTool := mcp.NewTool("files_move",
		mcp.WithDescription("Move or rename a file or folder in the Dropbox account"),
		mcp.WithString("fromPath",
			mcp.Required(),
			mcp.Description("Current path of the item"),
		),
		mcp.WithString("toPath",
			mcp.Required(),
			mcp.Description("New path for the item"),
		),
	)

	s.AddTool(moveTool, common.InstrumentedToolHandlerWithOperation("files_move", instrumentation.OperationMove, sc,
		relocateHandler(sc, "move", func(ctx context.Context, client *dropbox.Client, from, to string) (*dropbox.Metadata, error) {
			return client.Move(ctx, from, to)
		})))

	// Copy tool
	copyTool := mcp.NewTool("files_copy",
		mcp.WithDescription("Copy a file or folder in the Dropbox account"),
		mcp.WithString("fromPath",
			mcp.Required(),
			mcp.Description("Path of the item to copy"),
		),
		mcp.WithString("toPath",
			mcp.Required(),
			mcp.Description("Destination path for the copy"),
		),
	)

	s.AddTool(copyTool, common.InstrumentedToolHandlerWithOperation("files_copy", instrumentation.OperationCopy, sc,
		relocateHandler(sc, "copy", func(ctx context.Context, client *dropbox.Client, from, to string) (*dropbox.Metadata, error) {
			return client.Copy(ctx, from, to)
		})))

	// Create folder tool
	createFolderTool := mcp.NewTool("files_create_folder",
		mcp.WithDescription("Create a folder in the Dropbox account"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the folder to create"),
		),
	)

	s.AddTool(createFolderTool, common.InstrumentedToolHandlerWithOperation("files_create_folder", instrumentation.OperationCreate, sc,
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

			meta, err := client.CreateFolder(ctx, path)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to create folder: %v", err)), nil
			}

			result, _ := json.MarshalIndent(meta, "", "  ")
			return mcp.NewToolResultText(fmt.Sprintf("Folder created successfully:\n%s", string(result))), nil
		}))

	return nil
}

// relocateHandler builds a handler for the move and copy tools, which
// share the same argument shape.
func relocateHandler(
	sc *server.ServerContext,
	verb string,
	relocate func(ctx context.Context, client *dropbox.Client, from, to string) (*dropbox.Metadata, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		fromPath, ok := args["fromPath"].(string)
		if !ok || fromPath == "" {
			return mcp.NewToolResultError("fromPath is required"), nil
		}

		toPath, ok := args["toPath"].(string)
		if !ok || toPath == "" {
			return mcp.NewToolResultError("toPath is required"), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		meta, err := relocate(ctx, client, fromPath, toPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to %s item: %v", verb, err)), nil
		}

		result, _ := json.MarshalIndent(meta, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}
}
