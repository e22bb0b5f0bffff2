// Package tui implements the castscan terminal wizard.
//
// The wizard is a full-screen Bubble Tea program with two screens:
//   - Discovery: scans on start, lists known devices as cards and lets the
//     user select, rename, add an address by hand or rescan
//   - Selected: confirms the saved selection and points at the playback
//     commands
//
// While a scan runs the discovery screen shows a spinner and a progress bar
// measured against the discover timeout. Scan failures are shown as the
// error's message and leave the previous device list in place.
//
// The wizard reads and writes through a store.Store. It subscribes to the
// known-devices snapshot, so devices added by a concurrent scan appear
// without a rescan.
//
// # Key Bindings
//
//   - Discovery: ↑/↓ navigate, enter select, n rename, m manual address,
//     r rescan, / filter, q quit
//   - Text entry: enter confirm, esc cancel
//   - Selected: d back to devices, q quit
//
// # Usage Example
//
//	device, err := tui.Run(st, prefs.DiscoverTimeout())
//	if err != nil {
//	    log.Fatal(err)
//	}
package tui
