package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "castscan") {
		t.Errorf("GetConfigDir() = %v, should contain 'castscan'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	default:
		if configDir != filepath.Join("/tmp/xdg-test", "castscan") {
			t.Errorf("GetConfigDir() = %v, want XDG_CONFIG_HOME/castscan", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("NewRegistry().Version = %v, want %v", reg.Version, CurrentVersion)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}

	p := reg.Preferences
	if p.DiscoverTimeout() != 5*time.Second {
		t.Errorf("DiscoverTimeout() = %v, want 5s", p.DiscoverTimeout())
	}
	if p.ProbeTimeout() != time.Second {
		t.Errorf("ProbeTimeout() = %v, want 1s", p.ProbeTimeout())
	}
	if p.ProbePort != 8080 || p.ProbeWorkers != 254 {
		t.Errorf("probe port/workers = %d/%d, want 8080/254", p.ProbePort, p.ProbeWorkers)
	}
	if !p.EnableSSDP || !p.EnableProbe || p.EnableMDNS {
		t.Errorf("strategies = %v/%v/%v, want true/true/false", p.EnableSSDP, p.EnableProbe, p.EnableMDNS)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default preferences should validate: %v", err)
	}
}

func TestRegistryCustomNames(t *testing.T) {
	reg := NewRegistry()
	reg.path = filepath.Join(t.TempDir(), "config.yaml")

	if err := reg.SetCustomName("192.168.1.20", "  Living Room "); err != nil {
		t.Fatalf("SetCustomName() error = %v", err)
	}
	reg.MarkSeen("192.168.1.21", 8080, "remote-control", time.Now())

	names := reg.CustomNames()
	if len(names) != 1 {
		t.Fatalf("CustomNames() = %v, want one entry", names)
	}
	if names["192.168.1.20"] != "Living Room" {
		t.Errorf("CustomNames()[192.168.1.20] = %q, want %q", names["192.168.1.20"], "Living Room")
	}

	// Clearing a name removes it from the overlay
	if err := reg.SetCustomName("192.168.1.20", ""); err != nil {
		t.Fatalf("SetCustomName() error = %v", err)
	}
	if len(reg.CustomNames()) != 0 {
		t.Errorf("CustomNames() = %v, want empty", reg.CustomNames())
	}
}

func TestRegistryMarkSeen(t *testing.T) {
	reg := NewRegistry()
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	reg.MarkSeen("10.0.0.5", 49152, "multicast", seen)

	device := reg.GetDevice("10.0.0.5")
	if device == nil {
		t.Fatal("Device should exist after MarkSeen()")
	}
	if device.LastPort != 49152 || device.LastKind != "multicast" || !device.LastSeen.Equal(seen) {
		t.Errorf("device = %+v", device)
	}
	if reg.GetDevice("10.0.0.6") != nil {
		t.Error("GetDevice() for unknown address should be nil")
	}
}

func TestRegistrySelection(t *testing.T) {
	reg := NewRegistry()
	reg.path = filepath.Join(t.TempDir(), "config.yaml")

	if _, ok := reg.Selection(); ok {
		t.Error("Selection() on new registry should be empty")
	}

	want := Selection{Address: "10.0.0.9", Port: 8080, Kind: "remote-control"}
	if err := reg.SetSelection(want); err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}
	got, ok := reg.Selection()
	if !ok || got != want {
		t.Errorf("Selection() = %+v, %v, want %+v, true", got, ok, want)
	}

	if err := reg.SetSelection(Selection{}); err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}
	if _, ok := reg.Selection(); ok {
		t.Error("Selection() should be cleared")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if reg.Path() != path {
		t.Errorf("Path() = %v, want %v", reg.Path(), path)
	}

	reg.MarkSeen("192.168.1.40", 49152, "multicast", time.Now())
	if err := reg.SetCustomName("192.168.1.40", "Bedroom TV"); err != nil {
		t.Fatalf("SetCustomName() error = %v", err)
	}
	if err := reg.SetSelection(Selection{Address: "192.168.1.40", Port: 49152, Kind: "multicast"}); err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}
	reg.Preferences.EnableMDNS = true
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be removed after save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.CustomNames()["192.168.1.40"]; got != "Bedroom TV" {
		t.Errorf("custom name = %q, want Bedroom TV", got)
	}
	if sel, ok := loaded.Selection(); !ok || sel.Address != "192.168.1.40" || sel.Port != 49152 || sel.Kind != "multicast" {
		t.Errorf("Selection() = %+v, %v", sel, ok)
	}
	if !loaded.Preferences.EnableMDNS {
		t.Error("EnableMDNS should round-trip")
	}
	if device := loaded.GetDevice("192.168.1.40"); device == nil || device.LastPort != 49152 {
		t.Errorf("GetDevice() = %+v, want last_port 49152", device)
	}
}

func TestLoad_PartialPreferencesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "version: 1\npreferences:\n  probe_port: 9090\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg.Preferences.ProbePort != 9090 {
		t.Errorf("ProbePort = %v, want 9090", reg.Preferences.ProbePort)
	}
	if !reg.Preferences.EnableSSDP || reg.Preferences.DiscoverTimeoutMS != DefaultDiscoverTimeoutMS {
		t.Errorf("missing preferences should keep defaults: %+v", reg.Preferences)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "version: [1\n"},
		{"unsupported version", "version: 2\n"},
		{"invalid preferences", "version: 1\npreferences:\n  probe_port: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestPreferences_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("CASTSCAN_DISCOVER_TIMEOUT_MS", "2500")
	t.Setenv("CASTSCAN_PROBE_WORKERS", "64")

	p := DefaultPreferences()
	if err := p.ApplyEnvOverrides(); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}
	if p.DiscoverTimeoutMS != 2500 {
		t.Errorf("DiscoverTimeoutMS = %v, want 2500", p.DiscoverTimeoutMS)
	}
	if p.ProbeWorkers != 64 {
		t.Errorf("ProbeWorkers = %v, want 64", p.ProbeWorkers)
	}
	if p.ProbePort != DefaultProbePort {
		t.Errorf("ProbePort = %v, want unchanged %v", p.ProbePort, DefaultProbePort)
	}

	t.Setenv("CASTSCAN_PROBE_PORT", "eighty")
	if err := p.ApplyEnvOverrides(); err == nil {
		t.Error("ApplyEnvOverrides() with non-numeric value should fail")
	}
}

func TestPreferences_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *Preferences)
		wantErr bool
	}{
		{"defaults", func(p *Preferences) {}, false},
		{"timeout too small", func(p *Preferences) { p.DiscoverTimeoutMS = 10 }, true},
		{"probe timeout too small", func(p *Preferences) { p.ProbeTimeoutMS = 0 }, true},
		{"bad port", func(p *Preferences) { p.ProbePort = 70000 }, true},
		{"no workers", func(p *Preferences) { p.ProbeWorkers = 0 }, true},
		{"no strategies", func(p *Preferences) { p.EnableSSDP, p.EnableProbe = false, false }, true},
		{"mdns only", func(p *Preferences) { p.EnableSSDP, p.EnableProbe, p.EnableMDNS = false, false, true }, false},
		{"ssdp without target", func(p *Preferences) { p.SearchTarget = " " }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPreferences()
			tt.modify(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
