package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CurrentVersion is the registry file format version
const CurrentVersion = 1

// Preference defaults
const (
	DefaultDiscoverTimeoutMS = 5000
	DefaultProbeTimeoutMS    = 1000
	DefaultProbePort         = 8080
	DefaultProbeWorkers      = 254
	DefaultSearchTarget      = "urn:schemas-upnp-org:device:MediaRenderer:1"
)

// Registry represents the entire user configuration file.
// It stores user-defined metadata for devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by IPv4 address
	Selected    *Selection         `yaml:"selected,omitempty"`
	Preferences Preferences        `yaml:"preferences"`

	mu   sync.RWMutex
	path string
}

// Device represents user-defined metadata for one device address
type Device struct {
	CustomName string    `yaml:"custom_name,omitempty"`
	LastPort   int       `yaml:"last_port,omitempty"`
	LastKind   string    `yaml:"last_kind,omitempty"` // "multicast" or "remote-control"
	LastSeen   time.Time `yaml:"last_seen,omitempty"`
}

// Selection is the persisted selected device endpoint
type Selection struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Kind    string `yaml:"kind,omitempty"`
}

// Preferences represents application-wide discovery preferences
type Preferences struct {
	DiscoverTimeoutMS int    `yaml:"discover_timeout_ms"`
	ProbeTimeoutMS    int    `yaml:"probe_timeout_ms"`
	ProbePort         int    `yaml:"probe_port"`
	ProbeWorkers      int    `yaml:"probe_workers"`
	EnableSSDP        bool   `yaml:"enable_ssdp"`
	EnableProbe       bool   `yaml:"enable_probe"`
	EnableMDNS        bool   `yaml:"enable_mdns"`
	SearchTarget      string `yaml:"search_target"`
}

// DefaultPreferences returns the built-in preferences
func DefaultPreferences() Preferences {
	return Preferences{
		DiscoverTimeoutMS: DefaultDiscoverTimeoutMS,
		ProbeTimeoutMS:    DefaultProbeTimeoutMS,
		ProbePort:         DefaultProbePort,
		ProbeWorkers:      DefaultProbeWorkers,
		EnableSSDP:        true,
		EnableProbe:       true,
		SearchTarget:      DefaultSearchTarget,
	}
}

// DiscoverTimeout returns the SSDP receive deadline
func (p Preferences) DiscoverTimeout() time.Duration {
	return time.Duration(p.DiscoverTimeoutMS) * time.Millisecond
}

// ProbeTimeout returns the per-host probe timeout
func (p Preferences) ProbeTimeout() time.Duration {
	return time.Duration(p.ProbeTimeoutMS) * time.Millisecond
}

// Validate checks the preferences for out-of-range values
func (p Preferences) Validate() error {
	var errs []string

	if p.DiscoverTimeoutMS < 100 || p.DiscoverTimeoutMS > 60000 {
		errs = append(errs, "preferences.discover_timeout_ms must be between 100 and 60000")
	}
	if p.ProbeTimeoutMS < 50 || p.ProbeTimeoutMS > 30000 {
		errs = append(errs, "preferences.probe_timeout_ms must be between 50 and 30000")
	}
	if p.ProbePort < 1 || p.ProbePort > 65535 {
		errs = append(errs, "preferences.probe_port must be between 1 and 65535")
	}
	if p.ProbeWorkers < 1 || p.ProbeWorkers > 1024 {
		errs = append(errs, "preferences.probe_workers must be between 1 and 1024")
	}
	if !p.EnableSSDP && !p.EnableProbe && !p.EnableMDNS {
		errs = append(errs, "at least one of enable_ssdp, enable_probe, enable_mdns must be true")
	}
	if p.EnableSSDP && strings.TrimSpace(p.SearchTarget) == "" {
		errs = append(errs, "preferences.search_target is required when enable_ssdp is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ApplyEnvOverrides overrides numeric preferences from CASTSCAN_* variables
func (p *Preferences) ApplyEnvOverrides() error {
	overrides := []struct {
		name   string
		target *int
	}{
		{"CASTSCAN_DISCOVER_TIMEOUT_MS", &p.DiscoverTimeoutMS},
		{"CASTSCAN_PROBE_TIMEOUT_MS", &p.ProbeTimeoutMS},
		{"CASTSCAN_PROBE_PORT", &p.ProbePort},
		{"CASTSCAN_PROBE_WORKERS", &p.ProbeWorkers},
	}

	for _, o := range overrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", o.name, v, err)
		}
		*o.target = n
	}
	return nil
}

// NewRegistry creates a new Registry with default values
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
	}
}

// GetDevice retrieves device metadata by address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(address string) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Devices[address]
}

// ensureDevice returns the entry for address, creating it when missing.
// Callers hold the write lock.
func (r *Registry) ensureDevice(address string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if device, exists := r.Devices[address]; exists {
		return device
	}
	device := &Device{}
	r.Devices[address] = device
	return device
}

// CustomNames returns a copy of every non-empty custom name keyed by address
func (r *Registry) CustomNames() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[string]string, len(r.Devices))
	for address, device := range r.Devices {
		if device != nil && device.CustomName != "" {
			names[address] = device.CustomName
		}
	}
	return names
}

// SetCustomName stores a custom name for address and saves the registry.
// An empty name clears the override.
func (r *Registry) SetCustomName(address, name string) error {
	r.mu.Lock()
	r.ensureDevice(address).CustomName = strings.TrimSpace(name)
	r.mu.Unlock()
	return r.Save()
}

// Selection returns the persisted selection
func (r *Registry) Selection() (Selection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Selected == nil || r.Selected.Address == "" {
		return Selection{}, false
	}
	return *r.Selected, true
}

// SetSelection persists the selected endpoint. An empty address clears it.
func (r *Registry) SetSelection(sel Selection) error {
	r.mu.Lock()
	if sel.Address == "" {
		r.Selected = nil
	} else {
		r.Selected = &sel
	}
	r.mu.Unlock()
	return r.Save()
}

// MarkSeen records the last endpoint seen at address. Call Save to persist.
func (r *Registry) MarkSeen(address string, port int, kind string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device := r.ensureDevice(address)
	device.LastPort = port
	device.LastKind = kind
	device.LastSeen = at
}
