package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/logging"
	"github.com/boxkite-mcp/boxkite/internal/policy"
)

// ToolInvocation captures all information about a tool invocation for audit logging.
// This provides a comprehensive audit trail for all MCP tool calls.
//
// # Privacy Considerations
//
// The UserID and Path fields contain PII. When logging, consider:
//   - Using AnonymizedUser() for metrics/general logs
//   - Only logging raw identifiers in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type ToolInvocation struct {
	// Tool name
	Tool string

	// UserID is the requesting user identifier
	UserID string

	// Path is the storage path the tool operated on, if any
	Path string

	// Operation type (list, get, move, delete, upload, ...)
	Operation string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// AnonymizedUser returns a short hash of the user identifier for
// lower-cardinality logging.
func (ti *ToolInvocation) AnonymizedUser() string {
	return logging.AnonymizeUser(ti.UserID)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// This provides a consistent set of fields for all tool invocation logs.
//
// # Cardinality
//
// This function uses cardinality-controlled values (anonymized user)
// for metrics-compatible logging. For full audit logging, use LogAuditAttrs.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user_hash", ti.AnonymizedUser()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	// Add optional fields only if present
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging.
// This includes the raw user identifier and path for compliance purposes.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("user", ti.UserID),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	// Add all optional fields
	if ti.Path != "" {
		attrs = append(attrs, slog.String("path", ti.Path))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity information.
func (ti *ToolInvocation) WithUser(userID string) *ToolInvocation {
	ti.UserID = userID
	return ti
}

// WithPath sets the storage path the tool is operating on.
func (ti *ToolInvocation) WithPath(path string) *ToolInvocation {
	ti.Path = path
	return ti
}

// WithOperation sets the operation type.
func (ti *ToolInvocation) WithOperation(operation string) *ToolInvocation {
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
// Returns the same ToolInvocation for method chaining.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger provides structured audit logging for tool invocations and
// deletion events. It wraps slog.Logger with convenience methods and
// implements policy.Auditor so the policy engine can report into the same
// audit stream.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (anonymized identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include raw user identifiers in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation using the standard log attributes.
// This is suitable for general operational logging with cardinality controls.
// If the logger is configured with IncludePII, raw user identifiers are logged;
// otherwise, anonymized identifiers are used.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	// Choose between PII and anonymized logging based on configuration
	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// LogToolAudit logs a tool invocation with full audit details.
// This includes PII for compliance/audit purposes.
// SECURITY: Ensure audit logs are routed to secure storage with appropriate access controls.
//
// Note: This method respects the enabled flag but always includes PII when called,
// regardless of the IncludePII configuration. Use LogToolInvocation for
// configuration-aware logging.
func (al *AuditLogger) LogToolAudit(ti *ToolInvocation) {
	if !al.enabled {
		return
	}

	attrs := ti.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("tool_audit", args...)
}

// DeleteRequested records a delete that stopped at the confirmation gate.
// Implements policy.Auditor.
func (al *AuditLogger) DeleteRequested(ctx context.Context, userID, path string, meta *dropbox.Metadata) {
	if !al.enabled {
		return
	}

	args := []any{
		slog.String("event_id", uuid.NewString()),
		al.userAttr(userID),
		slog.String("path", path),
	}
	if meta != nil {
		args = append(args, slog.String("item_type", meta.Tag), slog.Int64("size", meta.Size))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		args = append(args, slog.String("trace_id", traceID))
	}

	al.logger.Info("delete_confirmation_requested", args...)
}

// DeleteExecuted records an executed soft or permanent delete together with
// its version metadata. Implements policy.Auditor.
func (al *AuditLogger) DeleteExecuted(ctx context.Context, version *policy.VersionMetadata) {
	if !al.enabled {
		return
	}

	args := []any{
		slog.String("event_id", uuid.NewString()),
		slog.String("version_id", version.ID),
		al.userAttr(version.UserID),
		slog.String("path", version.OriginalPath),
		slog.String("operation", version.Operation),
		slog.Time("deleted_at", version.DeletedAt),
	}
	if version.RecyclePath != "" {
		args = append(args, slog.String("recycle_path", version.RecyclePath))
	}
	if !version.ExpiresAt.IsZero() {
		args = append(args, slog.Time("expires_at", version.ExpiresAt))
	}
	if version.Reason != "" {
		args = append(args, slog.String("reason", version.Reason))
	}
	if version.Snapshot != nil {
		args = append(args, slog.String("item_type", version.Snapshot.Tag), slog.Int64("size", version.Snapshot.Size))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		args = append(args, slog.String("trace_id", traceID))
	}

	al.logger.Info("delete_executed", args...)
}

// DeleteFailed records a delete that passed policy checks but failed at
// the provider, keeping the attempted path and user in the audit trail.
// Implements policy.Auditor.
func (al *AuditLogger) DeleteFailed(ctx context.Context, userID, path string, err error) {
	if !al.enabled {
		return
	}

	args := []any{
		slog.String("event_id", uuid.NewString()),
		al.userAttr(userID),
		slog.String("path", path),
		slog.String("error", err.Error()),
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		args = append(args, slog.String("trace_id", traceID))
	}

	al.logger.Error("delete_failed", args...)
}

func (al *AuditLogger) userAttr(userID string) slog.Attr {
	if al.includePII {
		return slog.String("user", userID)
	}
	return slog.String("user_hash", logging.AnonymizeUser(userID))
}

// TraceIDFromContext extracts the trace ID from the current span in context.
// Returns empty string if no valid span is present.
//
// Deprecated: Use GetTraceID instead. This function is kept for backwards compatibility
// and will be removed in v2.0.
func TraceIDFromContext(ctx context.Context) string {
	return GetTraceID(ctx)
}
