package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/policy"
)

// Test constants to reduce string repetition and satisfy goconst
const (
	testUserID     = "u1"
	testPath       = "/docs/report.pdf"
	testTraceID    = "abc123def456"
	testSpanID     = "span789"
	testToolList   = "files_list_folder"
	testToolDelete = "files_safe_delete"
	testToolMove   = "files_move"
)

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation(testToolList)

	// Verify initial state
	if ti.Tool != testToolList {
		t.Errorf("Tool = %q, want %q", ti.Tool, testToolList)
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	// Complete the invocation - duration should be calculated from StartTime
	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("Success should be true")
	}
	// Duration is calculated from StartTime, so it should be >= 0
	// We don't check for > 0 as the test may complete instantly
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if ti.Error != "" {
		t.Errorf("Error should be empty, got %q", ti.Error)
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation(testToolDelete)
	err := errors.New("permission denied")

	ti.CompleteWithError(err)

	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.Error != "permission denied" {
		t.Errorf("Error = %q, want %q", ti.Error, "permission denied")
	}
}

func TestToolInvocation_WithUser(t *testing.T) {
	ti := NewToolInvocation(testToolList)
	ti.WithUser(testUserID)

	if ti.UserID != testUserID {
		t.Errorf("UserID = %q, want %q", ti.UserID, testUserID)
	}
}

func TestToolInvocation_WithPathAndOperation(t *testing.T) {
	ti := NewToolInvocation(testToolMove)
	ti.WithPath(testPath).WithOperation(OperationMove)

	if ti.Path != testPath {
		t.Errorf("Path = %q, want %q", ti.Path, testPath)
	}
	if ti.Operation != OperationMove {
		t.Errorf("Operation = %q, want %q", ti.Operation, OperationMove)
	}
}

func TestToolInvocation_AnonymizedUser(t *testing.T) {
	ti := NewToolInvocation("test")
	ti.UserID = testUserID

	anon := ti.AnonymizedUser()
	if anon == "" || anon == testUserID {
		t.Errorf("AnonymizedUser() = %q, want a non-empty hash distinct from the raw ID", anon)
	}
}

func TestToolInvocation_Status(t *testing.T) {
	ti := NewToolInvocation("test")

	ti.Success = true
	if status := ti.Status(); status != StatusSuccess {
		t.Errorf("Status() = %q, want %q", status, StatusSuccess)
	}

	ti.Success = false
	if status := ti.Status(); status != StatusError {
		t.Errorf("Status() = %q, want %q", status, StatusError)
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolList)
	ti.WithUser(testUserID).
		WithPath(testPath).
		WithOperation(OperationList).
		CompleteSuccess()
	ti.TraceID = testTraceID

	attrs := ti.LogAttrs()

	// Verify we have the expected attributes
	attrMap := make(map[string]slog.Attr)
	for _, attr := range attrs {
		attrMap[attr.Key] = attr
	}

	// Check required attributes
	requiredKeys := []string{"tool", "user_hash", "duration", "success"}
	for _, key := range requiredKeys {
		if _, ok := attrMap[key]; !ok {
			t.Errorf("Missing required attribute: %s", key)
		}
	}

	// Cardinality-controlled logs never carry the raw identifier or path.
	if hash := attrMap["user_hash"].Value.String(); hash == testUserID {
		t.Errorf("user_hash = %q, raw identifier must not leak", hash)
	}
	if _, ok := attrMap["path"]; ok {
		t.Error("path should not be present in cardinality-controlled attrs")
	}

	if operation := attrMap["operation"].Value.String(); operation != OperationList {
		t.Errorf("operation = %q, want %q", operation, OperationList)
	}
}

func TestToolInvocation_LogAttrs_WithError(t *testing.T) {
	ti := NewToolInvocation(testToolDelete)
	ti.WithUser(testUserID).
		CompleteWithError(errors.New("test error"))

	attrs := ti.LogAttrs()

	attrMap := make(map[string]slog.Attr)
	for _, attr := range attrs {
		attrMap[attr.Key] = attr
	}

	// Check error attribute is present
	if _, ok := attrMap["error"]; !ok {
		t.Error("Missing error attribute")
	}
	if errVal := attrMap["error"].Value.String(); errVal != "test error" {
		t.Errorf("error = %q, want %q", errVal, "test error")
	}
}

func TestToolInvocation_LogAttrs_MinimalFields(t *testing.T) {
	ti := NewToolInvocation(testToolList)
	ti.CompleteSuccess()

	attrs := ti.LogAttrs()

	// Verify minimal attributes are present
	attrMap := make(map[string]slog.Attr)
	for _, attr := range attrs {
		attrMap[attr.Key] = attr
	}

	// These should NOT be present when not set
	if _, ok := attrMap["operation"]; ok {
		t.Error("operation should not be present when empty")
	}
	if _, ok := attrMap["trace_id"]; ok {
		t.Error("trace_id should not be present when empty")
	}
}

func TestToolInvocation_LogAuditAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolDelete)
	ti.WithUser(testUserID).
		WithPath(testPath).
		WithOperation(OperationDelete).
		CompleteSuccess()
	ti.TraceID = testTraceID
	ti.SpanID = testSpanID

	attrs := ti.LogAuditAttrs()

	// Verify we have the expected attributes
	attrMap := make(map[string]slog.Attr)
	for _, attr := range attrs {
		attrMap[attr.Key] = attr
	}

	// Check that full values are present (not cardinality-controlled)
	if user := attrMap["user"].Value.String(); user != testUserID {
		t.Errorf("user = %q, want %q", user, testUserID)
	}
	if path := attrMap["path"].Value.String(); path != testPath {
		t.Errorf("path = %q, want %q", path, testPath)
	}

	// Check trace context
	if traceID := attrMap["trace_id"].Value.String(); traceID != testTraceID {
		t.Errorf("trace_id = %q, want %q", traceID, testTraceID)
	}
	if spanID := attrMap["span_id"].Value.String(); spanID != testSpanID {
		t.Errorf("span_id = %q, want %q", spanID, testSpanID)
	}
}

func TestToolInvocation_MethodChaining(t *testing.T) {
	ti := NewToolInvocation(testToolMove).
		WithUser(testUserID).
		WithPath(testPath).
		WithOperation(OperationMove).
		CompleteSuccess()

	if ti.Tool != testToolMove {
		t.Errorf("Tool = %q, want %q", ti.Tool, testToolMove)
	}
	if ti.UserID != testUserID {
		t.Errorf("UserID = %q, want %q", ti.UserID, testUserID)
	}
	if ti.Path != testPath {
		t.Errorf("Path = %q, want %q", ti.Path, testPath)
	}
	if !ti.Success {
		t.Error("Success should be true")
	}
}

func TestAuditLogger_New(t *testing.T) {
	// Test with nil logger (should use default)
	al := NewAuditLogger(nil)
	if al.logger == nil {
		t.Error("logger should not be nil when created with nil")
	}

	// Test with custom logger
	logger := slog.Default()
	al = NewAuditLogger(logger)
	if al.logger != logger {
		t.Error("logger should be the provided logger")
	}
}

func TestAuditLogger_LogToolInvocation_PIIControl(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)

	ti := NewToolInvocation(testToolList).
		WithUser(testUserID).
		CompleteSuccess()
	al.LogToolInvocation(ti)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if _, ok := entry["user"]; ok {
		t.Error("raw user must not be logged when IncludePII is false")
	}
	if _, ok := entry["user_hash"]; !ok {
		t.Error("user_hash should be logged when IncludePII is false")
	}

	// With PII enabled, the raw identifier appears.
	buf.Reset()
	al.SetIncludePII(true)
	al.LogToolInvocation(ti)

	entry = map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["user"] != testUserID {
		t.Errorf("user = %v, want %q", entry["user"], testUserID)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)
	al.SetEnabled(false)

	al.LogToolInvocation(NewToolInvocation(testToolList).CompleteSuccess())
	al.DeleteRequested(context.Background(), testUserID, testPath, nil)
	al.DeleteExecuted(context.Background(), &policy.VersionMetadata{ID: "v1"})
	al.DeleteFailed(context.Background(), testUserID, testPath, errors.New("provider unavailable"))

	if buf.Len() != 0 {
		t.Errorf("disabled audit logger produced output: %s", buf.String())
	}
}

func TestAuditLogger_DeleteRequested(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)

	al.DeleteRequested(context.Background(), testUserID, testPath, &dropbox.Metadata{
		Tag:  "file",
		Name: "report.pdf",
		Size: 1024,
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "delete_confirmation_requested" {
		t.Errorf("msg = %v, want delete_confirmation_requested", entry["msg"])
	}
	if entry["path"] != testPath {
		t.Errorf("path = %v, want %q", entry["path"], testPath)
	}
	if entry["item_type"] != "file" {
		t.Errorf("item_type = %v, want file", entry["item_type"])
	}
	if id, ok := entry["event_id"].(string); !ok || id == "" {
		t.Error("event_id should be set")
	}
}

func TestAuditLogger_DeleteExecuted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)

	deletedAt := time.Unix(1700000000, 0).UTC()
	al.DeleteExecuted(context.Background(), &policy.VersionMetadata{
		ID:           "v123",
		OriginalPath: testPath,
		RecyclePath:  "/.recycle_bin/v123_report.pdf",
		Operation:    policy.OpSoftDelete,
		DeletedAt:    deletedAt,
		ExpiresAt:    deletedAt.Add(30 * 24 * time.Hour),
		UserID:       testUserID,
		Reason:       "cleanup",
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "delete_executed" {
		t.Errorf("msg = %v, want delete_executed", entry["msg"])
	}
	if entry["version_id"] != "v123" {
		t.Errorf("version_id = %v, want v123", entry["version_id"])
	}
	if entry["operation"] != policy.OpSoftDelete {
		t.Errorf("operation = %v, want %q", entry["operation"], policy.OpSoftDelete)
	}
	if entry["recycle_path"] != "/.recycle_bin/v123_report.pdf" {
		t.Errorf("recycle_path = %v", entry["recycle_path"])
	}
	if entry["reason"] != "cleanup" {
		t.Errorf("reason = %v, want cleanup", entry["reason"])
	}
}

func TestAuditLogger_DeleteFailed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)

	al.DeleteFailed(context.Background(), testUserID, testPath, errors.New("provider unavailable"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "delete_failed" {
		t.Errorf("msg = %v, want delete_failed", entry["msg"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["path"] != testPath {
		t.Errorf("path = %v, want %q", entry["path"], testPath)
	}
	if entry["error"] != "provider unavailable" {
		t.Errorf("error = %v, want provider unavailable", entry["error"])
	}
	if id, ok := entry["event_id"].(string); !ok || id == "" {
		t.Error("event_id should be set")
	}
}

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	ctx := context.Background()
	traceID := TraceIDFromContext(ctx)

	if traceID != "" {
		t.Errorf("TraceIDFromContext with no span = %q, want empty string", traceID)
	}
}

func TestToolInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ctx := context.Background()
	ti := NewToolInvocation("test").WithSpanContext(ctx)

	if ti.TraceID != "" {
		t.Errorf("TraceID = %q, want empty string", ti.TraceID)
	}
	if ti.SpanID != "" {
		t.Errorf("SpanID = %q, want empty string", ti.SpanID)
	}
}

func TestToolInvocation_Complete_NilError(t *testing.T) {
	ti := NewToolInvocation("test")
	ti.Complete(true, nil)

	if ti.Error != "" {
		t.Errorf("Error = %q, want empty string", ti.Error)
	}
}
