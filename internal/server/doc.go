// Package server provides the MCP server context, health probes, and the
// dedicated Prometheus metrics server for the boxkite application.
//
// # Key Components
//
// ServerContext bundles the shared dependencies for tool handlers: the
// OAuth token manager, the Dropbox client, the deletion policy engine,
// and the observability hooks (metrics recorder, audit logger). It also
// carries the read-only flag that gates every write tool.
//
// HealthChecker exposes /healthz and /readyz endpoints for Kubernetes
// probes, wired to the ServerContext shutdown state.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolating
// operational metrics from the MCP transport.
package server
