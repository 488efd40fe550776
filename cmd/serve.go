package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/boxkite-mcp/boxkite/internal/auth"
	"github.com/boxkite-mcp/boxkite/internal/config"
	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/instrumentation"
	"github.com/boxkite-mcp/boxkite/internal/policy"
	"github.com/boxkite-mcp/boxkite/internal/resources"
	"github.com/boxkite-mcp/boxkite/internal/secrets"
	"github.com/boxkite-mcp/boxkite/internal/server"
	"github.com/boxkite-mcp/boxkite/internal/tools/delete_tools"
	"github.com/boxkite-mcp/boxkite/internal/tools/files_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		transport      string
		httpAddr       string
		yolo           bool
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the connected
Dropbox account as tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  operations. Use --yolo to enable write operations (upload, move, delete).

Configuration:
  All settings come from BOXKITE_-prefixed environment variables.
  BOXKITE_APP_KEY and BOXKITE_ENCRYPTION_KEY are required; run
  'boxkite setup' once to authorize the account before serving.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			return runServe(transport, debugMode, httpAddr, yolo, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (upload, move, copy, delete). Default is read-only mode.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(transport string, debugMode bool, httpAddr string, yolo bool, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Log to stderr so stdout stays clean for the stdio transport
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server stopped with error: %v", err)
			}
		}()
		log.Printf("Metrics server started on %s", metricsServer.Addr())
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
	}()

	// Wire the credential store and token manager
	store, err := secrets.NewStore(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create secret store: %w", err)
	}

	managerOpts := []auth.Option{auth.WithLogger(logger)}
	if provider.Enabled() {
		managerOpts = append(managerOpts, auth.WithRefreshObserver(func(result string) {
			provider.Metrics().RecordOAuthTokenRefresh(context.Background(), result)
		}))
	}

	manager, err := auth.NewManager(auth.Config{
		AppKey:           cfg.AppKey,
		AppSecret:        cfg.AppSecret,
		RedirectURI:      cfg.RedirectURI,
		TokenFile:        cfg.TokenFile,
		RefreshThreshold: cfg.RefreshThreshold,
		MaxRetries:       cfg.MaxRetries,
		RetryDelay:       cfg.RetryDelay,
	}, store, managerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	if !manager.Status().Authenticated && transport != "stdio" {
		log.Println("No credential found; run 'boxkite setup' to authorize the account")
	}

	client := dropbox.NewClient(manager)

	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	engine := policy.NewEngine(policy.Config{
		RecycleBinPath:   cfg.RecycleBinPath,
		MaxDeletesPerDay: cfg.MaxDeletesPerDay,
		RetentionDays:    cfg.RetentionDays,
		AllowedPaths:     cfg.AllowedPaths,
		BlockedPaths:     cfg.BlockedPaths,
	}, client, policy.WithAuditor(auditLogger), policy.WithLogger(logger))

	// readOnly is the inverse of yolo
	readOnly := !yolo

	contextOpts := []server.ContextOption{
		server.WithAuthManager(manager),
		server.WithDropboxClient(client),
		server.WithPolicyEngine(engine),
		server.WithAuditLogger(auditLogger),
		server.WithReadOnly(readOnly),
	}
	if provider.Enabled() {
		contextOpts = append(contextOpts, server.WithMetrics(provider.Metrics()))
	}
	serverContext := server.NewServerContext(shutdownCtx, contextOpts...)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("boxkite", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	// Log the mode for visibility (only for non-stdio transports)
	if transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, httpAddr)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	healthChecker := server.NewHealthChecker(sc)
	healthChecker.SetReady(true)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	healthChecker.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	fmt.Printf("Streamable HTTP server starting on %s\n", addr)
	fmt.Printf("  HTTP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Files",
			register: func() error {
				return files_tools.RegisterFilesTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Delete",
			register: func() error {
				return delete_tools.RegisterDeleteTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
