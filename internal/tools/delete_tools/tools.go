package delete_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/instrumentation"
	"github.com/boxkite-mcp/boxkite/internal/policy"
	"github.com/boxkite-mcp/boxkite/internal/server"
	"github.com/boxkite-mcp/boxkite/internal/tools/common"
)

// getEngine retrieves the policy engine from the server context.
// The engine is nil until the account has been authorized.
func getEngine(sc *server.ServerContext) (*policy.Engine, error) {
	engine := sc.PolicyEngine()
	if engine == nil {
		return nil, fmt.Errorf("not authenticated: run 'boxkite setup' to authorize the Dropbox account")
	}
	return engine, nil
}

// RegisterDeleteTools registers the deletion tools with the MCP server.
// Deletion is a write operation, so nothing is registered in read-only mode.
func RegisterDeleteTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if readOnly {
		return nil
	}

	// Safe delete tool
	safeDeleteTool := mcp.NewTool("files_safe_delete",
		mcp.WithDescription("Delete a file or folder with policy checks. By default the item is moved to the recycle bin and can be restored until its retention expires. The first call returns a confirmation request; repeat with skipConfirmation to execute."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file or folder to delete"),
		),
		mcp.WithString("userId",
			mcp.Description("Identifier of the requesting user, used for the daily delete quota (default: 'default')"),
		),
		mcp.WithBoolean("skipConfirmation",
			mcp.Description("Execute the deletion instead of returning a confirmation request (default: false)"),
		),
		mcp.WithNumber("retentionDays",
			mcp.Description("Days to keep the item in the recycle bin before it is eligible for purging (default: server retention setting)"),
		),
		mcp.WithString("reason",
			mcp.Description("Free-form reason recorded in the audit log"),
		),
		mcp.WithBoolean("permanent",
			mcp.Description("Permanently delete instead of moving to the recycle bin (default: false)"),
		),
	)

	s.AddTool(safeDeleteTool, common.InstrumentedToolHandlerWithOperation("files_safe_delete", instrumentation.OperationDelete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, ok := args["path"].(string)
			if !ok || path == "" {
				return mcp.NewToolResultError("path is required"), nil
			}

			engine, err := getEngine(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			req := policy.DeleteRequest{
				Path:   path,
				UserID: common.GetUserFromArgs(args),
			}
			if skip, ok := args["skipConfirmation"].(bool); ok {
				req.SkipConfirmation = skip
			}
			if days, ok := args["retentionDays"].(float64); ok && days > 0 {
				req.RetentionDays = int(days)
			}
			if reason, ok := args["reason"].(string); ok {
				req.Reason = reason
			}
			if permanent, ok := args["permanent"].(bool); ok {
				req.Permanent = permanent
			}

			result, err := engine.SafeDelete(ctx, req)
			if err != nil {
				recordDelete(ctx, sc, requestedOperation(req), deleteResultLabel(err))
				return mcp.NewToolResultError(err.Error()), nil
			}

			if result.Status == policy.StatusSuccess {
				recordDelete(ctx, sc, result.Operation, instrumentation.DeleteResultSuccess)
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			return mcp.NewToolResultText(string(out)), nil
		}))

	// Legacy delete tool
	deleteTool := mcp.NewTool("files_delete",
		mcp.WithDescription("Permanently delete a file or folder without confirmation. Deprecated: use files_safe_delete, which supports the recycle bin and confirmation."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file or folder to delete"),
		),
	)

	s.AddTool(deleteTool, common.InstrumentedToolHandlerWithOperation("files_delete", instrumentation.OperationDelete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, ok := args["path"].(string)
			if !ok || path == "" {
				return mcp.NewToolResultError("path is required"), nil
			}

			engine, err := getEngine(sc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			result, err := engine.DeleteItem(ctx, path)
			if err != nil {
				recordDelete(ctx, sc, policy.OpPermanentDelete, deleteResultLabel(err))
				return mcp.NewToolResultError(err.Error()), nil
			}

			recordDelete(ctx, sc, result.Operation, instrumentation.DeleteResultSuccess)

			out, _ := json.MarshalIndent(result, "", "  ")
			return mcp.NewToolResultText(string(out)), nil
		}))

	return nil
}

func requestedOperation(req policy.DeleteRequest) string {
	if req.Permanent {
		return policy.OpPermanentDelete
	}
	return policy.OpSoftDelete
}

// deleteResultLabel maps a deletion failure to a bounded metric label.
func deleteResultLabel(err error) string {
	var policyErr *policy.Error
	if errors.As(err, &policyErr) {
		switch policyErr.Kind {
		case policy.KindBlockedPath, policy.KindPathNotAllowed:
			return instrumentation.DeleteResultBlocked
		case policy.KindQuotaExceeded:
			return instrumentation.DeleteResultQuotaExceeded
		}
	}
	return instrumentation.DeleteResultError
}

func recordDelete(ctx context.Context, sc *server.ServerContext, operation, result string) {
	if metrics := sc.Metrics(); metrics != nil {
		metrics.RecordSafeDelete(ctx, operation, result)
	}
}
