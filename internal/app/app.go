// Package app is the application context: it is built once at startup,
// owns every long-lived collaborator and serves the tools until shut down.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"gaggiuino_mcp/internal/config"
	"gaggiuino_mcp/internal/device"
	"gaggiuino_mcp/internal/handlers"
	"gaggiuino_mcp/internal/logger"
	"gaggiuino_mcp/internal/metrics"
	"gaggiuino_mcp/internal/server"
	"gaggiuino_mcp/internal/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const shutdownTimeout = 2 * time.Second

// App wires configuration, the device client, the tool server and the
// optional HTTP transport.
type App struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	device  *device.Client
	mcp     *mcp.Server
	http    *server.Server

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option customizes an App.
type Option func(*appOptions)

type appOptions struct {
	deviceOpts []device.Option
}

// WithDeviceOptions forwards options to the device client.
func WithDeviceOptions(opts ...device.Option) Option {
	return func(o *appOptions) {
		o.deviceOpts = append(o.deviceOpts, opts...)
	}
}

// New builds the application context and registers the tools.
func New(cfg config.Config, log *logger.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.Nop()
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.New()
	client := device.New(cfg.BaseURL, cfg.Timeout, append([]device.Option{device.WithObserver(m)}, o.deviceOpts...)...)

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}, nil)
	tools.NewDispatcher(client, log, m).Register(srv)

	return &App{
		cfg:     cfg,
		log:     log,
		metrics: m,
		device:  client,
		mcp:     srv,
		http:    &server.Server{},
	}
}

// MCPServer is the tool server, for in-process transports.
func (a *App) MCPServer() *mcp.Server { return a.mcp }

// Handler is the router of the http transport.
func (a *App) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return a.mcp
	}, nil)
	return handlers.NewHandler(a.device, mcpHandler, a.metrics.Handler(), a.log).InitRoutes()
}

// Run serves the configured transport until ctx ends, Shutdown is called or
// the stdio peer disconnects.
func (a *App) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorw("panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch a.cfg.Transport {
	case config.TransportHTTP:
		return a.runHTTP(ctx)
	default:
		return a.runStdio(ctx)
	}
}

func (a *App) runStdio(ctx context.Context) error {
	a.started("")
	err := a.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func (a *App) runHTTP(ctx context.Context) error {
	if err := a.http.Listen(a.cfg.Port, a.Handler()); err != nil {
		return fmt.Errorf("listen on %q: %w", a.cfg.Port, err)
	}
	a.started(a.http.Addr())

	served := make(chan error, 1)
	go func() { served <- a.http.Serve() }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		// No draining: open streams are cut after shutdownTimeout.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = a.http.Shutdown(sctx)
		return <-served
	}
}

func (a *App) started(addr string) {
	a.log.Infow(fmt.Sprintf("%s v%s started", config.ServerName, config.ServerVersion),
		"transport", a.cfg.Transport,
		"port", addr,
		"base_url", a.cfg.BaseURL,
	)
}

// Addr is the bound HTTP address while the http transport runs.
func (a *App) Addr() string { return a.http.Addr() }

// Shutdown stops Run. It does not wait for in-flight tool calls.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return a.http.Shutdown(ctx)
}
