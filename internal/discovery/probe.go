package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/castscan/internal/logging"
	"github.com/muurk/castscan/internal/metrics"
)

const (
	// DefaultProbePort is the remote-control JSON-RPC port
	DefaultProbePort = 8080

	// DefaultProbeTimeout bounds a single host probe
	DefaultProbeTimeout = 1 * time.Second

	// DefaultProbeWorkers is the number of concurrent probes. One per host of a /24.
	DefaultProbeWorkers = 254

	// PongResult is the ping payload that identifies a remote-control player
	PongResult = "pong"

	firstHost = 1
	lastHost  = 254
)

// Pinger sends a remote-control ping and returns the response's result field
type Pinger interface {
	Ping(ctx context.Context, address string, port int) (string, error)
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context, address string, port int) (string, error)

// Ping implements Pinger
func (f PingerFunc) Ping(ctx context.Context, address string, port int) (string, error) {
	return f(ctx, address, port)
}

// InterfaceAddrs is one network interface with its addresses
type InterfaceAddrs struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// InterfaceLister enumerates local interfaces
type InterfaceLister func() ([]InterfaceAddrs, error)

// SystemInterfaces lists the host's interfaces with their addresses
func SystemInterfaces() ([]InterfaceAddrs, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	result := make([]InterfaceAddrs, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		result = append(result, InterfaceAddrs{Name: ifi.Name, Flags: ifi.Flags, Addrs: addrs})
	}
	return result, nil
}

// LocalPrefix returns the first three octets of the first private IPv4
// address on an up, non-loopback interface (e.g. "192.168.1").
func LocalPrefix(list InterfaceLister) (string, error) {
	if list == nil {
		list = SystemInterfaces
	}

	ifaces, err := list()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSubnet, err)
	}

	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		for _, addr := range ifi.Addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			}
			ip4 := ip.To4()
			if ip4 == nil || !ip4.IsPrivate() {
				continue
			}
			return fmt.Sprintf("%d.%d.%d", ip4[0], ip4[1], ip4[2]), nil
		}
	}

	return "", ErrNoSubnet
}

// RangeProber pings every host of the local /24 on the remote-control port
type RangeProber struct {
	// Port is the remote-control port probed on each host
	Port int

	// Timeout bounds each host probe
	Timeout time.Duration

	// Workers caps concurrent probes. The pinger's transport must be able to
	// sustain this many simultaneous connections.
	Workers int

	// Prefix overrides interface detection when set (e.g. "10.0.0")
	Prefix string

	Pinger     Pinger
	Interfaces InterfaceLister
}

// NewRangeProber creates a prober with default settings
func NewRangeProber(pinger Pinger) *RangeProber {
	return &RangeProber{
		Port:       DefaultProbePort,
		Timeout:    DefaultProbeTimeout,
		Workers:    DefaultProbeWorkers,
		Pinger:     pinger,
		Interfaces: SystemInterfaces,
	}
}

// Name implements Strategy
func (p *RangeProber) Name() string {
	return "probe"
}

// Discover probes hosts 1..254 of the local prefix. Per-host failures are
// silent; ErrNoSubnet is returned with an empty list when no prefix exists.
func (p *RangeProber) Discover(ctx context.Context) ([]*Device, error) {
	devices := make([]*Device, 0)

	if p.Pinger == nil {
		return devices, fmt.Errorf("range probe has no pinger")
	}

	prefix := p.Prefix
	if prefix == "" {
		var err error
		prefix, err = LocalPrefix(p.Interfaces)
		if err != nil {
			logging.Warn("Skipping active range probe", zap.Error(err))
			return devices, err
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = DefaultProbeWorkers
	}

	logging.Debug("Starting active range probe",
		zap.String("prefix", prefix),
		zap.Int("port", p.port()),
		zap.Int("workers", workers),
	)

	// One slot per host keeps results in host order without locking
	found := make([]*Device, lastHost+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for host := firstHost; host <= lastHost; host++ {
		if gctx.Err() != nil {
			break
		}
		address := fmt.Sprintf("%s.%d", prefix, host)
		g.Go(func() error {
			found[host] = p.probe(gctx, address)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range found {
		if d != nil {
			devices = append(devices, d)
		}
	}

	return devices, ctx.Err()
}

// probe pings one host and returns a device only for an exact "pong".
// The timeout holds even when the pinger ignores its context.
func (p *RangeProber) probe(ctx context.Context, address string) *Device {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type pingResult struct {
		result string
		err    error
	}
	done := make(chan pingResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- pingResult{err: fmt.Errorf("%w: %v", ErrStrategyPanic, r)}
			}
		}()
		result, err := p.Pinger.Ping(ctx, address, p.port())
		done <- pingResult{result: result, err: err}
	}()

	var res pingResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = pingResult{err: ctx.Err()}
	}

	if res.err != nil {
		metrics.ProbeAttemptsTotal.WithLabelValues("error").Inc()
		return nil
	}
	if res.result != PongResult {
		metrics.ProbeAttemptsTotal.WithLabelValues("mismatch").Inc()
		logging.Debug("Probe answered without pong",
			zap.String("address", address),
			zap.String("result", res.result),
		)
		return nil
	}

	metrics.ProbeAttemptsTotal.WithLabelValues("match").Inc()
	logging.Info("Remote-control player found", zap.String("address", address))
	return NewDevice(fmt.Sprintf("Kodi (%s)", address), address, p.port(), KindRemoteControl)
}

func (p *RangeProber) port() int {
	if p.Port <= 0 {
		return DefaultProbePort
	}
	return p.Port
}
