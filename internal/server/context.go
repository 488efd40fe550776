package server

import (
	"context"
	"sync"

	"github.com/boxkite-mcp/boxkite/internal/auth"
	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/instrumentation"
	"github.com/boxkite-mcp/boxkite/internal/policy"
)

// ServerContext holds the shared dependencies for the MCP server: the
// token manager, the Dropbox client, the deletion policy engine, and
// the observability hooks. Tool handlers reach everything through it.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	authManager *auth.Manager
	client      *dropbox.Client
	engine      *policy.Engine
	audit       *instrumentation.AuditLogger
	metrics     *instrumentation.Metrics

	readOnly bool

	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithAuthManager sets the OAuth token manager.
func WithAuthManager(m *auth.Manager) ContextOption {
	return func(sc *ServerContext) { sc.authManager = m }
}

// WithDropboxClient sets the Dropbox API client.
func WithDropboxClient(c *dropbox.Client) ContextOption {
	return func(sc *ServerContext) { sc.client = c }
}

// WithPolicyEngine sets the deletion policy engine.
func WithPolicyEngine(e *policy.Engine) ContextOption {
	return func(sc *ServerContext) { sc.engine = e }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *instrumentation.AuditLogger) ContextOption {
	return func(sc *ServerContext) { sc.audit = a }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithReadOnly marks the server as read-only. Write tools reject
// requests instead of mutating the account.
func WithReadOnly(readOnly bool) ContextOption {
	return func(sc *ServerContext) { sc.readOnly = readOnly }
}

// NewServerContext creates a new server context.
func NewServerContext(ctx context.Context, opts ...ContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// AuthManager returns the OAuth token manager.
func (sc *ServerContext) AuthManager() *auth.Manager {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.authManager
}

// DropboxClient returns the Dropbox API client.
func (sc *ServerContext) DropboxClient() *dropbox.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.client
}

// SetDropboxClient replaces the Dropbox API client. Used in tests.
func (sc *ServerContext) SetDropboxClient(c *dropbox.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.client = c
}

// PolicyEngine returns the deletion policy engine.
func (sc *ServerContext) PolicyEngine() *policy.Engine {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.engine
}

// SetPolicyEngine replaces the deletion policy engine. Used in tests.
func (sc *ServerContext) SetPolicyEngine(e *policy.Engine) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.engine = e
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// ReadOnly reports whether write tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.readOnly
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
