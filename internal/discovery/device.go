package discovery

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which protocol a device was discovered through
type Kind int

const (
	// KindRemoteControl is a player answering JSON-RPC remote-control requests
	KindRemoteControl Kind = iota
	// KindMulticast is a UPnP MediaRenderer found by SSDP
	KindMulticast
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindRemoteControl:
		return "remote-control"
	case KindMulticast:
		return "multicast"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "remote-control":
		*k = KindRemoteControl
	case "multicast":
		*k = KindMulticast
	default:
		return fmt.Errorf("unknown device kind %q", string(text))
	}
	return nil
}

// Device represents one discovered playback target on the local network
type Device struct {
	// ID is generated per scan and is not stable across scans.
	// Compare devices across scans with SameEndpoint.
	ID string `json:"id"`

	// DisplayName comes from protocol metadata (SSDP SERVER banner, probed IP)
	DisplayName string `json:"display_name"`

	// Address is the IPv4 address in dotted form
	Address string `json:"address"`

	// Port is the control port
	Port int `json:"port"`

	Kind Kind `json:"kind"`

	// ControlLocation is the SSDP LOCATION descriptor URL (multicast devices only)
	ControlLocation string `json:"control_location,omitempty"`

	// CustomName is a user override persisted by address
	CustomName string `json:"custom_name,omitempty"`

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewDevice creates a device with a fresh ID.
// Returns nil when address is empty or port is not positive.
func NewDevice(name, address string, port int, kind Kind) *Device {
	if address == "" || port <= 0 {
		return nil
	}
	return &Device{
		ID:           uuid.NewString(),
		DisplayName:  name,
		Address:      address,
		Port:         port,
		Kind:         kind,
		DiscoveredAt: time.Now(),
	}
}

// Name returns the custom name if set, otherwise the display name
func (d *Device) Name() string {
	if d.CustomName != "" {
		return d.CustomName
	}
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Address
}

// SameEndpoint reports whether two devices share address and port
func (d *Device) SameEndpoint(other *Device) bool {
	if d == nil || other == nil {
		return false
	}
	return d.Address == other.Address && d.Port == other.Port
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s [%s] at %s:%d", d.Name(), d.Kind, d.Address, d.Port)
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.Address, d.Port)
}

// Clone returns a shallow copy so callers can overlay fields without
// mutating a published snapshot.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
