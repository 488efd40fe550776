package instrumentation

import "github.com/boxkite-mcp/boxkite/internal/logging"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with user identifiers.

// AnonymizeUser reduces a user identifier to a short stable hash.
// Paths must never appear as metric labels at all; use spans for those.
//
// Example:
//
//	AnonymizeUser("u1")  // "user:<hex digest>"
//	AnonymizeUser("")    // ""
func AnonymizeUser(userID string) string {
	return logging.AnonymizeUser(userID)
}

// Common operation types for Dropbox API metrics.
// Status, OAuth, and delete-result constants are defined in config.go.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationSearch   = "search"
	OperationUpload   = "upload"
	OperationDownload = "download"
	OperationMove     = "move"
	OperationCopy     = "copy"
	OperationCreate   = "create"
	OperationDelete   = "delete"
	OperationLink     = "link"
)
