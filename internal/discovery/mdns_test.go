package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int, v4, v6 []net.IP) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, RemoteControlServiceType, ServiceDomain)
	entry.HostName = host
	entry.Port = port
	entry.AddrIPv4 = v4
	entry.AddrIPv6 = v6
	return entry
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
		wantName string
	}{
		{
			name:     "IPv4 advertisement",
			entry:    newEntry("Kodi (living-room)", "libreelec.local.", 8080, []net.IP{net.ParseIP("192.168.1.20")}, nil),
			wantIP:   "192.168.1.20",
			wantPort: 8080,
			wantName: "Kodi (living-room)",
		},
		{
			name:     "missing port defaults to remote-control port",
			entry:    newEntry("Kodi", "osmc.local.", 0, []net.IP{net.ParseIP("10.0.0.8")}, nil),
			wantIP:   "10.0.0.8",
			wantPort: DefaultProbePort,
			wantName: "Kodi",
		},
		{
			name:     "prefers IPv4 over IPv6",
			entry:    newEntry("Kodi", "osmc.local.", 8080, []net.IP{net.ParseIP("10.0.0.9")}, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "10.0.0.9",
			wantPort: 8080,
			wantName: "Kodi",
		},
		{
			name:     "IPv6 only",
			entry:    newEntry("Kodi", "osmc.local.", 8080, nil, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "fe80::2",
			wantPort: 8080,
			wantName: "Kodi",
		},
		{
			name:     "empty instance uses hostname",
			entry:    newEntry("", "htpc.local.", 8080, []net.IP{net.ParseIP("10.0.0.3")}, nil),
			wantIP:   "10.0.0.3",
			wantPort: 8080,
			wantName: "htpc.local.",
		},
		{
			name:    "no address",
			entry:   newEntry("Kodi", "osmc.local.", 8080, nil, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}

			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want device")
			}
			if device.Address != tt.wantIP {
				t.Errorf("device.Address = %v, want %v", device.Address, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if device.DisplayName != tt.wantName {
				t.Errorf("device.DisplayName = %v, want %v", device.DisplayName, tt.wantName)
			}
			if device.Kind != KindRemoteControl {
				t.Errorf("device.Kind = %v, want %v", device.Kind, KindRemoteControl)
			}
		})
	}
}

func TestNewMDNSBrowser(t *testing.T) {
	b := NewMDNSBrowser()
	if b.Timeout != DefaultDiscoveryTimeout {
		t.Errorf("Timeout = %v, want %v", b.Timeout, DefaultDiscoveryTimeout)
	}
	if b.ServiceType != RemoteControlServiceType {
		t.Errorf("ServiceType = %v, want %v", b.ServiceType, RemoteControlServiceType)
	}
	if b.Name() != "mdns" {
		t.Errorf("Name() = %v, want mdns", b.Name())
	}
}
