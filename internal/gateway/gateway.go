// ABOUTME: Gateway orchestrator that coordinates the HTTP and gRPC servers
// ABOUTME: Builds store, auth, components, registries and router, and manages their lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/2389/dbp-gateway/internal/adapter"
	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/components"
	"github.com/2389/dbp-gateway/internal/config"
	"github.com/2389/dbp-gateway/internal/mcp"
	"github.com/2389/dbp-gateway/internal/store"
	"github.com/2389/dbp-gateway/internal/tools"
)

// ServerName is reported by dbp_server_info.
const ServerName = "dbp-server"

// Option customizes New.
type Option func(*options)

type options struct {
	version string
	store   store.Store
}

// WithVersion sets the version reported by dbp_server_info.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithStore uses s instead of opening database.path. The gateway still closes
// it on Shutdown.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// Gateway orchestrates the dbp-server components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	provider   *auth.Provider
	container  *components.Container
	mcpServer  *mcp.Server
	handler    http.Handler
	httpServer *http.Server
	grpcServer *grpc.Server // nil when gRPC is disabled
	health     *health.Server
	tsnet      *tsnet.Server
	logger     *slog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	s := o.store
	if s == nil {
		var err error
		s, err = initStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	gw, err := build(cfg, s, o.version, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

func build(cfg *config.Config, s store.Store, version string, logger *slog.Logger) (*Gateway, error) {
	provider, err := NewAuthProvider(cfg.Auth, logger.With("component", "auth"))
	if err != nil {
		return nil, err
	}

	container := components.NewContainer(logger.With("component", "container"))
	docsCfg := components.DocStoreConfig{
		Root:      cfg.Docs.Root,
		Watch:     cfg.Docs.Watch,
		CacheTTL:  cfg.Docs.CacheTTL,
		CacheSize: cfg.Docs.CacheSize,
		Logger:    logger.With("component", components.NameDocumentation),
	}
	if err := components.RegisterDefaults(container, docsCfg, s, logger.With("component", "components")); err != nil {
		return nil, fmt.Errorf("registering components: %w", err)
	}

	toolRegistry := mcp.NewToolRegistry(logger.With("component", "tools"))
	resourceRegistry := mcp.NewResourceRegistry(logger.With("component", "resources"))
	deps := tools.Deps{
		Adapter: adapter.New(container),
		Info: tools.ServerInfo{
			Name:        ServerName,
			Version:     version,
			StartedAt:   time.Now().UTC(),
			AuthEnabled: provider.Enabled(),
		},
		Status: container.Status,
	}
	if err := tools.Register(toolRegistry, resourceRegistry, deps); err != nil {
		return nil, fmt.Errorf("registering handlers: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Tools:     toolRegistry,
		Resources: resourceRegistry,
		Auth:      provider,
		Audit:     storeAudit{store: s},
		Logger:    logger.With("component", "mcp"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		provider:  provider,
		container: container,
		mcpServer: mcpServer,
		health:    health.NewServer(),
		logger:    logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	mcpServer.RegisterRoutes(mux, auth.HTTPAuthMiddleware(provider))
	gw.handler = mux

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.GRPCAddr != "" || cfg.Tailscale.Enabled {
		gw.grpcServer = newGRPCServer(gw.logger)
		mcpServer.RegisterGRPC(gw.grpcServer)
		healthpb.RegisterHealthServer(gw.grpcServer, gw.health)
	}
	gw.setServing(false)

	return gw, nil
}

// initStore creates the SQLite store, creating the parent directory if needed.
func initStore(cfg *config.Config) (store.Store, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func newGRPCServer(logger *slog.Logger) *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(mcp.RecoverUnaryInterceptor(logger)),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
}

// Handler returns the HTTP handler serving the MCP and health endpoints.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// MCP returns the request router.
func (g *Gateway) MCP() *mcp.Server {
	return g.mcpServer
}

// Provider returns the authentication provider.
func (g *Gateway) Provider() *auth.Provider {
	return g.provider
}

// Store returns the persistence layer.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Initialize initializes every component. The gRPC health service reports
// SERVING only after it succeeds.
func (g *Gateway) Initialize(ctx context.Context) error {
	if err := g.container.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	g.setServing(g.container.Ready())
	g.logger.Info("components initialized", "components", len(g.container.Status()))
	return nil
}

func (g *Gateway) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(mcp.GRPCServiceName, status)
}

// Run initializes components, starts the servers, and blocks until the
// context is canceled. It returns nil on graceful shutdown, or an error if a
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Initialize(ctx); err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	httpLn, grpcLn, err := g.setupListeners(ctx)
	if err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}
	return g.Serve(ctx, httpLn, grpcLn)
}

// Serve accepts connections on the given listeners until ctx is canceled,
// then shuts down. grpcLn may be nil.
func (g *Gateway) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	errCh := g.startServers(httpLn, grpcLn)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// setupTCPListeners creates TCP listeners for HTTP and, when configured, gRPC.
func (g *Gateway) setupTCPListeners() (httpLn, grpcLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"grpc_addr", g.config.Server.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.config.Server.GRPCAddr == "" {
		return httpLn, nil, nil
	}
	grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
	if err != nil {
		_ = httpLn.Close()
		return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
	}
	return httpLn, grpcLn, nil
}

// warnIgnoredAddresses logs a warning if server addresses are configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddresses() {
	if g.config.Server.GRPCAddr != "" || g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.http_addr and server.grpc_addr are ignored when tailscale is enabled",
			"http_addr", g.config.Server.HTTPAddr,
			"grpc_addr", g.config.Server.GRPCAddr,
		)
	}
}

// startServers starts the servers in goroutines, returning an error channel.
func (g *Gateway) startServers(httpLn, grpcLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if grpcLn != nil && g.grpcServer != nil {
		go func() {
			g.logger.Info("gRPC server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		select {
		case additionalErr := <-errCh:
			g.logger.Error("additional server error", "error", additionalErr)
		default:
		}
		return err
	}
}

// gracefulShutdown uses a fresh context since the caller's is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the servers and releases components and the store. Only the
// first call does any work.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() { g.shutdownErr = g.shutdown(ctx) })
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.health.Shutdown()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	if g.tsnet != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnet.Close())
	}
	errs = appendCloseError(errs, "components close", g.container.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}
