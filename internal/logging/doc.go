// Package logging provides structured logging helpers built on log/slog.
//
// It defines the canonical attribute keys used across the codebase (tool,
// operation, path, user_hash, status, error) so log entries stay queryable,
// plus sanitization helpers that keep token material and raw user
// identifiers out of log output.
package logging
