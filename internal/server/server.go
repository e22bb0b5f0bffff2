package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/logging"
	"github.com/muurk/castscan/internal/metrics"
	"github.com/muurk/castscan/internal/rpc"
	"github.com/muurk/castscan/internal/store"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// DiscoverInterval is the minimum spacing of POST /api/discover calls
	DiscoverInterval time.Duration

	// DiscoverBurst is how many discovery requests may arrive back to back
	DiscoverBurst int

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a config listening on localhost:8765
func DefaultConfig() *Config {
	return &Config{
		Host:             "127.0.0.1",
		Port:             8765,
		DiscoverInterval: 10 * time.Second,
		DiscoverBurst:    1,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Remote is the remote-control surface used by the playback endpoints
type Remote interface {
	PlayURL(ctx context.Context, mediaURL string) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) (int, error)
	GetActivePlayers(ctx context.Context) ([]rpc.Player, error)
}

// RemoteFactory creates a remote-control client for a device
type RemoteFactory func(d *discovery.Device) Remote

// DefaultRemote talks JSON-RPC to a remote-control player's address and port
func DefaultRemote(d *discovery.Device) Remote {
	return rpc.NewClient(d.Address, d.Port)
}

// Server exposes the device store over HTTP and WebSocket
type Server struct {
	config     *Config
	store      *store.Store
	remote     RemoteFactory
	handler    http.Handler
	done       chan struct{}

	mu         sync.Mutex
	httpServer *http.Server
	closeOnce  sync.Once
}

// New creates a new Server instance
func New(config *Config, st *store.Store, remote RemoteFactory) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if remote == nil {
		remote = DefaultRemote
	}

	s := &Server{
		config: config,
		store:  st,
		remote: remote,
		done:   make(chan struct{}),
	}

	interval := config.DiscoverInterval
	if interval <= 0 {
		interval = DefaultConfig().DiscoverInterval
	}
	burst := config.DiscoverBurst
	if burst <= 0 {
		burst = 1
	}
	discoverLimiter := rate.NewLimiter(rate.Every(interval), burst)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("POST /api/discover", limit(discoverLimiter, s.handleDiscover))
	mux.HandleFunc("GET /api/selected", s.handleGetSelected)
	mux.HandleFunc("PUT /api/selected", s.handleSetSelected)
	mux.HandleFunc("PUT /api/devices/{address}/name", s.handleRename)
	mux.HandleFunc("POST /api/selected/play", s.handlePlay)
	mux.HandleFunc("POST /api/selected/stop", s.handleStop)
	mux.HandleFunc("POST /api/selected/pause", s.handlePause)
	mux.HandleFunc("GET /api/selected/players", s.handlePlayers)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.handler = recoverPanics(observe(mux))
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start starts the server and blocks until a shutdown signal or error
func (s *Server) Start() error {
	addr := s.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on listener until Shutdown
func (s *Server) Serve(listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	logging.Info("castscan API listening", zap.String("addr", listener.Addr().String()))

	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes WebSocket streams and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = httpServer.Close()
		}
	}

	logging.Sync()
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return DefaultConfig().ShutdownTimeout
}
