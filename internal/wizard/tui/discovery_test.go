package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/store"
)

type stubDiscoverer struct {
	devices []*discovery.Device
	err     error
}

func (d *stubDiscoverer) DiscoverAll(ctx context.Context) ([]*discovery.Device, error) {
	return d.devices, d.err
}

func testDevices() []*discovery.Device {
	return []*discovery.Device{
		discovery.NewDevice("Living Room TV", "10.0.0.5", 49152, discovery.KindMulticast),
		discovery.NewDevice("Kodi (10.0.0.9)", "10.0.0.9", 8080, discovery.KindRemoteControl),
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func update(t *testing.T, m DiscoveryModel, msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	dm, ok := updated.(DiscoveryModel)
	if !ok {
		t.Fatalf("Update() returned %T, want DiscoveryModel", updated)
	}
	return dm, cmd
}

// scanned returns a model that has completed one scan through the store
func scanned(t *testing.T, disc *stubDiscoverer) (DiscoveryModel, *store.Store) {
	t.Helper()

	st := store.New(disc, nil)
	m := NewDiscoveryModel(st, time.Second)
	m, _ = update(t, m, scanStartMsg{})

	msg := m.scanDevices()()
	complete, ok := msg.(scanCompleteMsg)
	if !ok {
		t.Fatalf("scanDevices() msg = %T, want scanCompleteMsg", msg)
	}
	m, _ = update(t, m, complete)
	return m, st
}

func TestScanComplete(t *testing.T) {
	m, st := scanned(t, &stubDiscoverer{devices: testDevices()})

	if m.Scanning {
		t.Error("Scanning should be false after scanCompleteMsg")
	}
	if m.Err != nil {
		t.Errorf("Err = %v, want nil", m.Err)
	}
	if got := len(m.DeviceList.Items()); got != 2 {
		t.Errorf("list items = %d, want 2", got)
	}
	if got := len(st.SavedDevices().Get()); got != 2 {
		t.Errorf("store snapshot = %d devices, want 2", got)
	}
}

func TestScanFailureKeepsList(t *testing.T) {
	disc := &stubDiscoverer{devices: testDevices()}
	m, _ := scanned(t, disc)

	scanErr := &discovery.DiscoveryError{Strategy: "probe", Err: discovery.ErrStrategyPanic}
	disc.err = scanErr
	m, _ = update(t, m, scanStartMsg{})
	m, _ = update(t, m, m.scanDevices()())

	if !errors.Is(m.Err, discovery.ErrStrategyPanic) {
		t.Errorf("Err = %v, want strategy panic", m.Err)
	}
	if got := len(m.DeviceList.Items()); got != 2 {
		t.Errorf("list items = %d, want previous 2 kept", got)
	}
	if view := m.View(); !strings.Contains(view, "probe") {
		t.Errorf("View() should show the error message:\n%s", view)
	}
}

func TestSelectDevice(t *testing.T) {
	m, st := scanned(t, &stubDiscoverer{devices: testDevices()})

	m, _ = update(t, m, keyDown)
	m, _ = update(t, m, keyEnter)

	if !m.Selected {
		t.Fatal("Selected should be true after enter")
	}
	got := m.GetSelectedDevice()
	if got == nil || got.Address != "10.0.0.9" {
		t.Fatalf("GetSelectedDevice() = %v, want 10.0.0.9", got)
	}
	if sel := st.SelectedDevice().Get(); sel == nil || sel.Address != "10.0.0.9" {
		t.Errorf("store selection = %v, want 10.0.0.9", sel)
	}
}

func TestEnterIgnoredWhileScanning(t *testing.T) {
	m, st := scanned(t, &stubDiscoverer{devices: testDevices()})
	m, _ = update(t, m, scanStartMsg{})
	m, _ = update(t, m, keyEnter)

	if m.Selected || st.SelectedDevice().Get() != nil {
		t.Error("enter during a scan should not select")
	}
}

func TestManualAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantPort int
	}{
		{"address only", "10.0.0.42", false, discovery.DefaultProbePort},
		{"address and port", "10.0.0.42:9090", false, 9090},
		{"hostname", "kodi.local", true, 0},
		{"bad port", "10.0.0.42:http", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st := scanned(t, &stubDiscoverer{})

			m, _ = update(t, m, keyRunes("m"))
			if m.Mode != inputManual {
				t.Fatalf("Mode = %v, want manual", m.Mode)
			}
			m, _ = update(t, m, keyRunes(tt.input))
			m, _ = update(t, m, keyEnter)

			if m.Mode != inputNone {
				t.Errorf("Mode = %v, want none after confirm", m.Mode)
			}
			if (m.Err != nil) != tt.wantErr {
				t.Fatalf("Err = %v, wantErr %v", m.Err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			d := st.FindDevice("10.0.0.42")
			if d == nil || d.Port != tt.wantPort {
				t.Fatalf("FindDevice() = %v, want port %d", d, tt.wantPort)
			}
			if focused := m.focusedDevice(); focused == nil || focused.Address != "10.0.0.42" {
				t.Errorf("focused = %v, want the added device", focused)
			}
		})
	}
}

func TestManualCancel(t *testing.T) {
	m, st := scanned(t, &stubDiscoverer{})

	m, _ = update(t, m, keyRunes("m"))
	m, _ = update(t, m, keyRunes("10.0.0.42"))
	m, _ = update(t, m, keyEsc)

	if m.Mode != inputNone {
		t.Errorf("Mode = %v, want none after esc", m.Mode)
	}
	if len(st.SavedDevices().Get()) != 0 {
		t.Error("cancelled entry should not add a device")
	}
}

func TestRenameDevice(t *testing.T) {
	m, st := scanned(t, &stubDiscoverer{devices: testDevices()})

	m, _ = update(t, m, keyRunes("n"))
	if m.Mode != inputRename || m.renameAddr != "10.0.0.5" {
		t.Fatalf("Mode = %v addr = %q, want rename of 10.0.0.5", m.Mode, m.renameAddr)
	}
	m, _ = update(t, m, keyRunes("Den TV"))
	m, _ = update(t, m, keyEnter)

	if m.Err != nil {
		t.Fatalf("Err = %v", m.Err)
	}
	if got := st.FindDevice("10.0.0.5").Name(); got != "Den TV" {
		t.Errorf("Name() = %q, want Den TV", got)
	}

	// The store snapshot update reaches the list through devicesUpdatedMsg
	m, _ = update(t, m, devicesUpdatedMsg{devices: st.SavedDevices().Get(), ok: true})
	if focused := m.focusedDevice(); focused == nil || focused.Name() != "Den TV" {
		t.Errorf("focused = %v, want renamed device", focused)
	}
}

func TestRescanKey(t *testing.T) {
	m, _ := scanned(t, &stubDiscoverer{devices: testDevices()})
	m.Err = errors.New("old failure")

	m, cmd := update(t, m, keyRunes("r"))
	if cmd == nil {
		t.Fatal("r should start a scan")
	}
	if m.Err != nil {
		t.Error("rescan should clear the previous error")
	}
}

func TestProgress(t *testing.T) {
	m := NewDiscoveryModel(store.New(&stubDiscoverer{}, nil), 10*time.Second)
	start := time.Now()

	if got := m.Progress(start); got != 0 {
		t.Errorf("Progress() before scan = %v, want 0", got)
	}

	m.Scanning = true
	m.ScanStartTime = start

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 0},
		{5 * time.Second, 0.5},
		{30 * time.Second, 0.99},
	}
	for _, tt := range tests {
		if got := m.Progress(start.Add(tt.elapsed)); got != tt.want {
			t.Errorf("Progress(+%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestEmptyResultsView(t *testing.T) {
	m, _ := scanned(t, &stubDiscoverer{})
	if view := m.View(); !strings.Contains(view, "No devices found") {
		t.Errorf("View() should show the empty state:\n%s", view)
	}
}
