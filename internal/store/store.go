package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muurk/castscan/internal/config"
	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/logging"
)

// ErrDeviceNotFound is returned when an address is not in the snapshot
var ErrDeviceNotFound = errors.New("device not found")

// Discoverer runs a discovery pass
type Discoverer interface {
	DiscoverAll(ctx context.Context) ([]*discovery.Device, error)
}

// Persistence stores custom names and the selection across runs
type Persistence interface {
	CustomNames() map[string]string
	SetCustomName(address, name string) error
	Selection() (config.Selection, bool)
	SetSelection(sel config.Selection) error
	MarkSeen(address string, port int, kind string, at time.Time)
	Save() error
}

// Store holds the known-devices snapshot and the selected device
type Store struct {
	discoverer Discoverer
	persist    Persistence

	saved    *Cell[[]*discovery.Device]
	selected *Cell[*discovery.Device]

	// serializes read-modify-write of the cells
	mu sync.Mutex

	// overlapping DiscoverDevices calls join the scan in flight
	scans singleflight.Group
}

// New creates a store. persist may be nil for an in-memory store. A
// persisted selection is restored as a placeholder device until the next scan.
func New(discoverer Discoverer, persist Persistence) *Store {
	s := &Store{
		discoverer: discoverer,
		persist:    persist,
		saved:      NewCell([]*discovery.Device{}),
		selected:   NewCell[*discovery.Device](nil),
	}

	if persist != nil {
		if sel, ok := persist.Selection(); ok {
			var kind discovery.Kind
			if err := kind.UnmarshalText([]byte(sel.Kind)); err != nil {
				kind = discovery.KindRemoteControl
			}
			if d := discovery.NewDevice(sel.Address, sel.Address, sel.Port, kind); d != nil {
				d.CustomName = persist.CustomNames()[sel.Address]
				s.selected.Set(d)
			}
		}
	}

	return s
}

// SavedDevices returns the known-devices snapshot
func (s *Store) SavedDevices() Observable[[]*discovery.Device] {
	return s.saved
}

// SelectedDevice returns the selected device, nil when none
func (s *Store) SelectedDevice() Observable[*discovery.Device] {
	return s.selected
}

// DiscoverDevices runs discovery and replaces the snapshot. On failure the
// snapshot is left unchanged and the error is returned for display.
// A call made while a scan is running waits for that scan's result, so
// snapshots are published in scan order. The joining caller's ctx only
// bounds its wait.
func (s *Store) DiscoverDevices(ctx context.Context) ([]*discovery.Device, error) {
	if s.discoverer == nil {
		return nil, fmt.Errorf("no discoverer configured")
	}

	ch := s.scans.DoChan("discover", func() (any, error) {
		return s.discover(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*discovery.Device), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) discover(ctx context.Context) ([]*discovery.Device, error) {
	found, err := s.discoverer.DiscoverAll(ctx)
	if err != nil {
		logging.Warn("Device discovery failed", zap.Error(err))
		return nil, err
	}

	names := s.customNames()
	devices := make([]*discovery.Device, 0, len(found))
	for _, d := range found {
		c := d.Clone()
		c.CustomName = names[c.Address]
		devices = append(devices, c)
	}

	s.mu.Lock()
	s.saved.Set(devices)
	cleared := s.reselectLocked(devices)
	s.mu.Unlock()

	if cleared && s.persist != nil {
		if err := s.persist.SetSelection(config.Selection{}); err != nil {
			logging.Warn("Failed to clear saved selection", zap.Error(err))
		}
	}

	s.recordSeen(devices)
	return devices, nil
}

// reselectLocked points the selection at the new instance with the same
// endpoint, or clears it when the device is gone. It reports whether the
// selection was cleared.
func (s *Store) reselectLocked(devices []*discovery.Device) bool {
	current := s.selected.Get()
	if current == nil {
		return false
	}

	for _, d := range devices {
		if d.SameEndpoint(current) {
			s.selected.Set(d)
			return false
		}
	}

	logging.Info("Selected device no longer present",
		zap.String("address", current.Address),
		zap.Int("port", current.Port),
	)
	s.selected.Set(nil)
	return true
}

func (s *Store) recordSeen(devices []*discovery.Device) {
	if s.persist == nil || len(devices) == 0 {
		return
	}
	for _, d := range devices {
		s.persist.MarkSeen(d.Address, d.Port, d.Kind.String(), d.DiscoveredAt)
	}
	if err := s.persist.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// SetSelectedDevice selects d, or clears the selection when d is nil, and
// persists the choice.
func (s *Store) SetSelectedDevice(d *discovery.Device) error {
	s.mu.Lock()
	s.selected.Set(d)
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}

	sel := config.Selection{}
	if d != nil {
		sel = config.Selection{Address: d.Address, Port: d.Port, Kind: d.Kind.String()}
	}
	if err := s.persist.SetSelection(sel); err != nil {
		return fmt.Errorf("failed to persist selection: %w", err)
	}
	return nil
}

// SelectAddress selects the known device at address. A positive port must
// also match.
func (s *Store) SelectAddress(address string, port int) (*discovery.Device, error) {
	d := s.FindDevice(address)
	if d == nil || (port > 0 && d.Port != port) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
	}
	return d, s.SetSelectedDevice(d)
}

// AddManualDevice adds a remote-control device entered by the user. An
// existing device at the same address is returned unchanged.
func (s *Store) AddManualDevice(address string, port int) (*discovery.Device, error) {
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid IPv4 address: %q", address)
	}
	if port <= 0 {
		port = discovery.DefaultProbePort
	}
	if port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.saved.Get()
	for _, d := range current {
		if d.Address == address {
			return d, nil
		}
	}

	d := discovery.NewDevice(address, address, port, discovery.KindRemoteControl)
	d.CustomName = s.customNames()[address]

	devices := make([]*discovery.Device, 0, len(current)+1)
	devices = append(devices, current...)
	devices = append(devices, d)
	s.saved.Set(devices)
	return d, nil
}

// RenameDevice stores a custom name for address and updates the snapshot
// and selection. An empty name restores the display name.
func (s *Store) RenameDevice(address, name string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	name = strings.TrimSpace(name)

	if s.persist != nil {
		if err := s.persist.SetCustomName(address, name); err != nil {
			return fmt.Errorf("failed to save custom name: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.saved.Get()
	devices := make([]*discovery.Device, 0, len(current))
	for _, d := range current {
		if d.Address == address {
			d = d.Clone()
			d.CustomName = name
		}
		devices = append(devices, d)
	}
	s.saved.Set(devices)

	if sel := s.selected.Get(); sel != nil && sel.Address == address {
		renamed := sel.Clone()
		renamed.CustomName = name
		s.selected.Set(renamed)
	}

	logging.Info("Device renamed", zap.String("address", address), zap.String("name", name))
	return nil
}

// FindDevice returns the known device at address, or nil
func (s *Store) FindDevice(address string) *discovery.Device {
	for _, d := range s.saved.Get() {
		if d.Address == address {
			return d
		}
	}
	return nil
}

func (s *Store) customNames() map[string]string {
	if s.persist == nil {
		return map[string]string{}
	}
	return s.persist.CustomNames()
}
