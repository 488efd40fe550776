package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSpanAttributeBuilder(t *testing.T) {
	builder := NewSpanAttributeBuilder().
		WithTool("files_list_folder").
		WithOperation("list").
		WithPath("/docs").
		WithUser("user:abcd1234").
		WithResource("file", "id:12345").
		WithReadOnly(true)

	attrs := builder.Build()

	if len(attrs) != 7 {
		t.Errorf("expected 7 attributes, got %d", len(attrs))
	}

	// Verify attributes are present
	attrMap := make(map[string]interface{})
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	if attrMap[SpanAttrTool] != "files_list_folder" {
		t.Errorf("expected tool 'files_list_folder', got %v", attrMap[SpanAttrTool])
	}
	if attrMap[SpanAttrOperation] != "list" {
		t.Errorf("expected operation 'list', got %v", attrMap[SpanAttrOperation])
	}
	if attrMap[SpanAttrPath] != "/docs" {
		t.Errorf("expected path '/docs', got %v", attrMap[SpanAttrPath])
	}
	if attrMap[SpanAttrUser] != "user:abcd1234" {
		t.Errorf("expected user 'user:abcd1234', got %v", attrMap[SpanAttrUser])
	}
	if attrMap[SpanAttrResourceType] != "file" {
		t.Errorf("expected resource type 'file', got %v", attrMap[SpanAttrResourceType])
	}
	if attrMap[SpanAttrResourceID] != "id:12345" {
		t.Errorf("expected resource id 'id:12345', got %v", attrMap[SpanAttrResourceID])
	}
	if attrMap[SpanAttrReadOnly] != true {
		t.Errorf("expected read_only true, got %v", attrMap[SpanAttrReadOnly])
	}
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	// Empty path, user, and resource should not be added
	builder := NewSpanAttributeBuilder().
		WithTool("test_tool").
		WithPath("").
		WithUser("").
		WithResource("", "")

	attrs := builder.Build()

	// Only tool should be present
	if len(attrs) != 1 {
		t.Errorf("expected 1 attribute (only tool), got %d", len(attrs))
	}
}

func newTracingTestProvider(t *testing.T, ctx context.Context) *Provider {
	t.Helper()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestStartSpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize provider to set global tracer
	newTracingTestProvider(t, ctx)

	spanCtx, span := StartSpan(ctx, "test-span")
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestStartToolSpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTracingTestProvider(t, ctx)

	spanCtx, span := StartToolSpan(ctx, "files_list_folder")
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestStartDropboxSpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTracingTestProvider(t, ctx)

	spanCtx, span := StartDropboxSpan(ctx, "list")
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestSetSpanError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTracingTestProvider(t, ctx)

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	SetSpanError(span, errors.New("test error"))
	SetSpanError(span, nil) // nil error should be safe
	span.End()
}

func TestSetSpanSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTracingTestProvider(t, ctx)

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	SetSpanSuccess(span)
	span.End()
}

func TestAddSpanEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	newTracingTestProvider(t, ctx)

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	AddSpanEvent(span, "test-event")
	span.End()
}

func TestGetTraceID_NoSpan(t *testing.T) {
	ctx := context.Background()
	traceID := GetTraceID(ctx)
	if traceID != "" {
		t.Errorf("expected empty trace ID for context without span, got %q", traceID)
	}
}

func TestGetSpanID_NoSpan(t *testing.T) {
	ctx := context.Background()
	spanID := GetSpanID(ctx)
	if spanID != "" {
		t.Errorf("expected empty span ID for context without span, got %q", spanID)
	}
}

func TestSpanContextString_NoSpan(t *testing.T) {
	ctx := context.Background()
	ctxStr := SpanContextString(ctx)
	if ctxStr != "" {
		t.Errorf("expected empty context string for context without span, got %q", ctxStr)
	}
}
