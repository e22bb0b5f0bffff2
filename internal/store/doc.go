// Package store holds the application's device state: the merged snapshot
// of known devices and the currently selected device.
//
// Both live in Cells. Writers replace the whole value and readers observe
// the latest one through Get or Subscribe. Custom names are overlaid by
// address after every scan, and the selection follows its (address, port)
// endpoint across scans because device IDs are regenerated each time.
package store
