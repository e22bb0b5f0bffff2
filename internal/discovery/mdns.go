package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// RemoteControlServiceType is the mDNS service advertised by JSON-RPC players
	RemoteControlServiceType = "_xbmc-jsonrpc-h._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."
)

// MDNSBrowser finds remote-control players that advertise themselves over
// mDNS. It is an optional third strategy; SSDP and the range probe cover the
// common case.
type MDNSBrowser struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration

	// ServiceType is the browsed service (default RemoteControlServiceType)
	ServiceType string
}

// NewMDNSBrowser creates a browser with default settings
func NewMDNSBrowser() *MDNSBrowser {
	return &MDNSBrowser{
		Timeout:     DefaultDiscoveryTimeout,
		ServiceType: RemoteControlServiceType,
	}
}

// Name implements Strategy
func (b *MDNSBrowser) Name() string {
	return "mdns"
}

// Discover browses until the timeout or cancellation
func (b *MDNSBrowser) Discover(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return []*Device{}, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	devices := make([]*Device, 0)

	go func() {
		for entry := range entries {
			if device := parseServiceEntry(entry); device != nil {
				mu.Lock()
				devices = append(devices, device)
				mu.Unlock()
			}
		}
	}()

	serviceType := b.ServiceType
	if serviceType == "" {
		serviceType = RemoteControlServiceType
	}
	if err := resolver.Browse(ctx, serviceType, ServiceDomain, entries); err != nil {
		return []*Device{}, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Device(nil), devices...), nil
}

// parseServiceEntry converts an advertisement into a remote-control device.
// Returns nil when the entry carries no address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultProbePort
	}

	name := entry.Instance
	if name == "" {
		name = entry.HostName
	}

	return NewDevice(name, ip, port, KindRemoteControl)
}
