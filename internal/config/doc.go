// Package config provides user configuration management for castscan.
//
// A YAML file stores per-address custom device names, the last selected
// device and discovery preferences. Devices are keyed by IPv4 address because
// device IDs are regenerated on every scan.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/castscan/config.yaml or $HOME/.config/castscan/config.yaml
//   - macOS: $HOME/.config/castscan/config.yaml
//   - Windows: %LOCALAPPDATA%\castscan\config.yaml
//
// # Environment Overrides
//
// CASTSCAN_DISCOVER_TIMEOUT_MS, CASTSCAN_PROBE_TIMEOUT_MS, CASTSCAN_PROBE_PORT
// and CASTSCAN_PROBE_WORKERS override the matching preferences at load time.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := registry.SetCustomName("192.168.1.20", "Living Room"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. The global registry uses
// sync.Once for initialization and saves are atomic (temp file + rename).
package config
