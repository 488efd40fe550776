package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newMetricsTestProvider(t *testing.T, ctx context.Context, detailedLabels bool) *Provider {
	t.Helper()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
		DetailedLabels:  detailedLabels,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 50*time.Millisecond)
}

func TestMetrics_RecordDropboxOperation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordDropboxOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordDropboxOperation(ctx, OperationMove, StatusError, 500*time.Millisecond)
	metrics.RecordDropboxOperation(ctx, OperationGet, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordOAuthTokenRefresh(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultExhausted)
}

func TestMetrics_RecordSafeDelete(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordSafeDelete(ctx, "soft_delete", DeleteResultSuccess)
	metrics.RecordSafeDelete(ctx, "permanent_delete", DeleteResultSuccess)
	metrics.RecordSafeDelete(ctx, "soft_delete", DeleteResultBlocked)
	metrics.RecordSafeDelete(ctx, "soft_delete", DeleteResultQuotaExceeded)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordToolInvocation(ctx, "files_list_folder", StatusSuccess, 100*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "files_safe_delete", StatusError, 500*time.Millisecond)
}

func TestMetrics_RecordToolInvocationWithUser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Without detailed labels the user label is ignored.
	metrics := newMetricsTestProvider(t, ctx, false).Metrics()
	metrics.RecordToolInvocationWithUser(ctx, "files_list_folder", StatusSuccess, AnonymizeUser("u1"), 100*time.Millisecond)
}

func TestMetrics_RecordToolInvocationWithUser_DetailedLabels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// With detailed labels the user label is included.
	metrics := newMetricsTestProvider(t, ctx, true).Metrics()
	metrics.RecordToolInvocationWithUser(ctx, "files_list_folder", StatusSuccess, AnonymizeUser("u1"), 100*time.Millisecond)
}

func TestMetrics_ActiveSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newMetricsTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.IncrementActiveSessions(ctx)
	metrics.IncrementActiveSessions(ctx)
	metrics.DecrementActiveSessions(ctx)
}

func TestMetrics_NoOp_WhenDisabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ctx, Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil even when disabled")
	}

	// All these should not panic even with nil underlying metrics
	metrics.RecordHTTPRequest(ctx, "GET", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordDropboxOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	metrics.RecordSafeDelete(ctx, "soft_delete", DeleteResultSuccess)
	metrics.RecordToolInvocation(ctx, "test_tool", StatusSuccess, 100*time.Millisecond)
	metrics.RecordToolInvocationWithUser(ctx, "test_tool", StatusSuccess, "user:abcd1234", 100*time.Millisecond)
	metrics.IncrementActiveSessions(ctx)
	metrics.DecrementActiveSessions(ctx)
}
