package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/castscan/internal/config"
	"github.com/muurk/castscan/internal/discovery"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	results [][]*discovery.Device
	err     error
	calls   int
}

func (f *fakeDiscoverer) DiscoverAll(ctx context.Context) ([]*discovery.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return []*discovery.Device{}, nil
	}
	next := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return next, nil
}

type memPersistence struct {
	mu        sync.Mutex
	names     map[string]string
	selection *config.Selection
	seen      map[string]int
	saves     int
	failSave  bool
}

func newMemPersistence() *memPersistence {
	return &memPersistence{names: map[string]string{}, seen: map[string]int{}}
}

func (m *memPersistence) CustomNames() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

func (m *memPersistence) SetCustomName(address, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.names[address] = name
	return nil
}

func (m *memPersistence) Selection() (config.Selection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selection == nil {
		return config.Selection{}, false
	}
	return *m.selection, true
}

func (m *memPersistence) SetSelection(sel config.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	if sel.Address == "" {
		m.selection = nil
	} else {
		m.selection = &sel
	}
	return nil
}

func (m *memPersistence) MarkSeen(address string, port int, kind string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[address] = port
}

func (m *memPersistence) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSave {
		return errors.New("disk full")
	}
	return nil
}

func tv(address string, port int) *discovery.Device {
	return discovery.NewDevice("TV", address, port, discovery.KindMulticast)
}

func kodi(address string) *discovery.Device {
	return discovery.NewDevice("Kodi ("+address+")", address, 8080, discovery.KindRemoteControl)
}

func TestStore_DiscoverDevices(t *testing.T) {
	persist := newMemPersistence()
	persist.names["10.0.0.5"] = "Living Room"

	disc := &fakeDiscoverer{results: [][]*discovery.Device{{tv("10.0.0.5", 49152), kodi("10.0.0.9")}}}
	s := New(disc, persist)

	devices, err := s.DiscoverDevices(context.Background())
	if err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %v, want 2", len(devices))
	}
	if devices[0].Name() != "Living Room" {
		t.Errorf("devices[0].Name() = %q, want Living Room", devices[0].Name())
	}
	if devices[1].CustomName != "" {
		t.Errorf("devices[1].CustomName = %q, want empty", devices[1].CustomName)
	}

	if got := s.SavedDevices().Get(); len(got) != 2 {
		t.Errorf("SavedDevices() = %v, want 2 devices", got)
	}
	if persist.seen["10.0.0.9"] != 8080 || persist.saves != 1 {
		t.Errorf("seen = %v, saves = %d", persist.seen, persist.saves)
	}
}

func TestStore_DiscoverDevices_DoesNotMutateEngineResults(t *testing.T) {
	persist := newMemPersistence()
	persist.names["10.0.0.5"] = "Living Room"

	original := tv("10.0.0.5", 49152)
	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{original}}}, persist)

	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}
	if original.CustomName != "" {
		t.Errorf("engine device was mutated: CustomName = %q", original.CustomName)
	}
}

func TestStore_DiscoverDevices_Failure(t *testing.T) {
	disc := &fakeDiscoverer{results: [][]*discovery.Device{{tv("10.0.0.5", 80)}}}
	s := New(disc, nil)

	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}

	disc.err = &discovery.DiscoveryError{Err: context.Canceled}
	devices, err := s.DiscoverDevices(context.Background())
	if err == nil {
		t.Fatal("DiscoverDevices() error = nil, want error")
	}
	if devices != nil {
		t.Errorf("DiscoverDevices() = %v, want nil on failure", devices)
	}
	if err.Error() == "" {
		t.Error("error should carry a description for display")
	}
	if got := s.SavedDevices().Get(); len(got) != 1 {
		t.Errorf("snapshot changed on failure: %v", got)
	}
}

func TestStore_SelectionFollowsEndpoint(t *testing.T) {
	first := []*discovery.Device{tv("10.0.0.5", 49152), kodi("10.0.0.9")}
	second := []*discovery.Device{kodi("10.0.0.9"), tv("10.0.0.5", 49152)}
	third := []*discovery.Device{kodi("10.0.0.9")}

	s := New(&fakeDiscoverer{results: [][]*discovery.Device{first, second, third}}, newMemPersistence())

	devices, _ := s.DiscoverDevices(context.Background())
	if err := s.SetSelectedDevice(devices[0]); err != nil {
		t.Fatalf("SetSelectedDevice() error = %v", err)
	}
	oldID := devices[0].ID

	devices, _ = s.DiscoverDevices(context.Background())
	sel := s.SelectedDevice().Get()
	if sel == nil {
		t.Fatal("selection cleared, want re-resolved")
	}
	if sel.ID == oldID {
		t.Error("selection should point at the new scan's instance")
	}
	if sel != devices[1] {
		t.Errorf("selection = %v, want %v", sel, devices[1])
	}

	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}
	if sel := s.SelectedDevice().Get(); sel != nil {
		t.Errorf("selection = %v, want nil after device disappeared", sel)
	}
}

func TestStore_VanishedSelectionNotRestored(t *testing.T) {
	persist := newMemPersistence()
	persist.selection = &config.Selection{Address: "10.0.0.5", Port: 49152, Kind: "multicast"}

	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{kodi("10.0.0.9")}}}, persist)
	if s.SelectedDevice().Get() == nil {
		t.Fatal("persisted selection should be restored before the scan")
	}

	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}
	if _, ok := persist.Selection(); ok {
		t.Error("persisted selection should be cleared once the device is gone")
	}

	if sel := New(&fakeDiscoverer{}, persist).SelectedDevice().Get(); sel != nil {
		t.Errorf("restored selection = %v, want nil on the next start", sel)
	}
}

func TestStore_SelectionKeptWhenDevicePresent(t *testing.T) {
	persist := newMemPersistence()
	persist.selection = &config.Selection{Address: "10.0.0.9", Port: 8080, Kind: "remote-control"}

	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{kodi("10.0.0.9")}}}, persist)
	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() error = %v", err)
	}
	if _, ok := persist.Selection(); !ok {
		t.Error("persisted selection should survive a scan that finds the device")
	}
}

func TestStore_SetSelectedDevice_Persists(t *testing.T) {
	persist := newMemPersistence()
	s := New(&fakeDiscoverer{}, persist)

	d := kodi("10.0.0.9")
	if err := s.SetSelectedDevice(d); err != nil {
		t.Fatalf("SetSelectedDevice() error = %v", err)
	}
	sel, ok := persist.Selection()
	if !ok || sel.Address != "10.0.0.9" || sel.Port != 8080 || sel.Kind != "remote-control" {
		t.Errorf("persisted selection = %+v, %v", sel, ok)
	}

	if err := s.SetSelectedDevice(nil); err != nil {
		t.Fatalf("SetSelectedDevice(nil) error = %v", err)
	}
	if _, ok := persist.Selection(); ok {
		t.Error("selection should be cleared")
	}

	persist.failSave = true
	if err := s.SetSelectedDevice(d); err == nil {
		t.Error("SetSelectedDevice() error = nil, want persistence error")
	}
}

func TestStore_RestoresPersistedSelection(t *testing.T) {
	persist := newMemPersistence()
	persist.selection = &config.Selection{Address: "10.0.0.9", Port: 8080, Kind: "remote-control"}
	persist.names["10.0.0.9"] = "Bedroom"

	s := New(&fakeDiscoverer{}, persist)
	sel := s.SelectedDevice().Get()
	if sel == nil {
		t.Fatal("SelectedDevice() = nil, want restored selection")
	}
	if sel.Address != "10.0.0.9" || sel.Port != 8080 || sel.Kind != discovery.KindRemoteControl {
		t.Errorf("restored = %+v", sel)
	}
	if sel.Name() != "Bedroom" {
		t.Errorf("Name() = %q, want Bedroom", sel.Name())
	}
}

func TestStore_RenameDevice(t *testing.T) {
	persist := newMemPersistence()
	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{tv("10.0.0.5", 49152), kodi("10.0.0.9")}}}, persist)

	devices, _ := s.DiscoverDevices(context.Background())
	_ = s.SetSelectedDevice(devices[0])

	if err := s.RenameDevice("10.0.0.5", " Den TV "); err != nil {
		t.Fatalf("RenameDevice() error = %v", err)
	}

	if got := s.FindDevice("10.0.0.5").Name(); got != "Den TV" {
		t.Errorf("FindDevice().Name() = %q, want Den TV", got)
	}
	if got := s.SelectedDevice().Get().Name(); got != "Den TV" {
		t.Errorf("selected Name() = %q, want Den TV", got)
	}
	if devices[0].CustomName != "" {
		t.Error("published snapshot must not be mutated")
	}
	if persist.names["10.0.0.5"] != "Den TV" {
		t.Errorf("persisted name = %q", persist.names["10.0.0.5"])
	}

	// Names survive a rescan
	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.FindDevice("10.0.0.5").Name(); got != "Den TV" {
		t.Errorf("Name() after rescan = %q, want Den TV", got)
	}

	if err := s.RenameDevice("", "x"); err == nil {
		t.Error("RenameDevice(\"\") error = nil, want error")
	}
}

func TestStore_SelectAddress(t *testing.T) {
	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{kodi("10.0.0.9")}}}, nil)
	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatal(err)
	}

	d, err := s.SelectAddress("10.0.0.9", 0)
	if err != nil {
		t.Fatalf("SelectAddress() error = %v", err)
	}
	if s.SelectedDevice().Get() != d {
		t.Error("SelectAddress() should update the selection")
	}

	if _, err := s.SelectAddress("10.0.0.9", 9090); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SelectAddress() port mismatch error = %v, want %v", err, ErrDeviceNotFound)
	}
	if _, err := s.SelectAddress("10.0.0.1", 0); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SelectAddress() unknown error = %v, want %v", err, ErrDeviceNotFound)
	}
}

func TestStore_AddManualDevice(t *testing.T) {
	s := New(&fakeDiscoverer{}, nil)

	d, err := s.AddManualDevice("192.168.1.77", 0)
	if err != nil {
		t.Fatalf("AddManualDevice() error = %v", err)
	}
	if d.Port != discovery.DefaultProbePort || d.Kind != discovery.KindRemoteControl {
		t.Errorf("manual device = %+v", d)
	}

	again, err := s.AddManualDevice("192.168.1.77", 9999)
	if err != nil || again != d {
		t.Errorf("AddManualDevice() duplicate = %v, %v, want existing device", again, err)
	}
	if len(s.SavedDevices().Get()) != 1 {
		t.Errorf("snapshot = %v, want 1 device", s.SavedDevices().Get())
	}

	for _, bad := range []string{"", "kodi.local", "fe80::1", "300.1.1.1"} {
		if _, err := s.AddManualDevice(bad, 8080); err == nil {
			t.Errorf("AddManualDevice(%q) error = nil, want error", bad)
		}
	}
	if _, err := s.AddManualDevice("10.0.0.1", 70000); err == nil {
		t.Error("AddManualDevice() with bad port should fail")
	}
}

func TestStore_SubscribersSeeSnapshots(t *testing.T) {
	s := New(&fakeDiscoverer{results: [][]*discovery.Device{{kodi("10.0.0.9")}}}, nil)

	updates, cancel := s.SavedDevices().Subscribe()
	defer cancel()

	if initial := receive(t, updates); len(initial) != 0 {
		t.Errorf("initial snapshot = %v, want empty", initial)
	}

	if _, err := s.DiscoverDevices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if next := receive(t, updates); len(next) != 1 {
		t.Errorf("snapshot = %v, want 1 device", next)
	}
}

// gatedDiscoverer blocks each scan until release is closed
type gatedDiscoverer struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	devices []*discovery.Device
}

func (g *gatedDiscoverer) DiscoverAll(ctx context.Context) ([]*discovery.Device, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.devices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestStore_DiscoverDevices_JoinsRunningScan(t *testing.T) {
	disc := &gatedDiscoverer{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
		devices: []*discovery.Device{kodi("10.0.0.9")},
	}
	s := New(disc, nil)

	var wg sync.WaitGroup
	results := make([][]*discovery.Device, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.DiscoverDevices(context.Background())
	}()
	<-disc.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = s.DiscoverDevices(context.Background())
	}()

	// Give the second caller time to join before the scan finishes
	time.Sleep(50 * time.Millisecond)
	close(disc.release)
	wg.Wait()

	if got := disc.calls.Load(); got != 1 {
		t.Errorf("DiscoverAll calls = %d, want 1", got)
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if len(results[i]) != 1 {
			t.Errorf("caller %d devices = %v, want 1", i, results[i])
		}
	}
}

func TestStore_DiscoverDevices_JoinerCancelled(t *testing.T) {
	disc := &gatedDiscoverer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(disc, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.DiscoverDevices(context.Background())
		done <- err
	}()
	<-disc.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.DiscoverDevices(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("DiscoverDevices() error = %v, want context.Canceled", err)
	}

	close(disc.release)
	if err := <-done; err != nil {
		t.Errorf("first scan error = %v", err)
	}
}
