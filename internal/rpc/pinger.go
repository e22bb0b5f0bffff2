package rpc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/muurk/castscan/internal/discovery"
)

// Pinger sends one JSONRPC.Ping per call without retries. All calls share a
// transport sized for the probe pool.
type Pinger struct {
	httpClient *http.Client
}

var _ discovery.Pinger = (*Pinger)(nil)

// NewPinger creates a pinger whose transport sustains workers concurrent
// connections. timeout bounds dialing and waiting for response headers; the
// caller's context still bounds the whole call.
func NewPinger(workers int, timeout time.Duration) *Pinger {
	if workers <= 0 {
		workers = discovery.DefaultProbeWorkers
	}
	if timeout <= 0 {
		timeout = discovery.DefaultProbeTimeout
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: -1,
		}).DialContext,
		MaxIdleConns:          workers,
		MaxIdleConnsPerHost:   1,
		MaxConnsPerHost:       1,
		IdleConnTimeout:       10 * time.Second,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
	}

	return &Pinger{httpClient: &http.Client{Transport: transport}}
}

// Ping implements discovery.Pinger
func (p *Pinger) Ping(ctx context.Context, address string, port int) (string, error) {
	c := NewClient(address, port)
	c.HTTPClient = p.httpClient
	c.MaxRetries = 0
	return c.Ping(ctx)
}

// Close releases idle connections
func (p *Pinger) Close() {
	p.httpClient.CloseIdleConnections()
}
