// Package ui renders styled output for the castscan CLI commands.
//
// Components follow a "print once" pattern. They render with lipgloss and
// are written through a Printer; nothing here reads input.
//
//   - Header: command banner with the operation name and parameters
//   - Steps: per-strategy outcome list for scan
//   - Result: success, warning and failure boxes
//   - RenderDeviceTable: aligned device listing
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Device Scan", "castscan scan", ui.Param{Key: "Timeout", Value: "5s"})
//	p.PrintDevices(devices, selected)
//
// Zap logging is silent unless CASTSCAN_LOG_LEVEL is set, so this output is
// the only thing written during normal use.
package ui
