// Package discovery finds playback devices on the local network.
//
// Two strategies run concurrently and their results are merged:
//  1. SSDP: one M-SEARCH datagram to 239.255.255.250:1900 for UPnP media
//     renderers, then a receive loop bounded by an overall deadline
//  2. Range probe: a remote-control ping to every host of the local /24 on the
//     JSON-RPC port, matching only an exact "pong"
//
// An optional mDNS browser adds players advertising _xbmc-jsonrpc-h._tcp.
//
// # Usage Example
//
//	engine, err := discovery.NewEngineFromOptions(discovery.DefaultOptions(pinger))
//	if err != nil {
//	    return err
//	}
//
//	devices, err := engine.DiscoverAll(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, device := range devices {
//	    fmt.Println(device)
//	}
//
// # Merging
//
// Results are concatenated in strategy order (SSDP, probe, mDNS) and
// deduplicated by address; the first occurrence wins. Strategy failures only
// shrink the result. Use Engine.Discover to inspect per-strategy errors such
// as ErrNoSubnet.
//
// # Network Requirements
//
// - SSDP needs multicast reception, acquired per run through a MulticastLock
// - The range probe needs an up, non-loopback interface with a private IPv4 address
// - Devices must be on the same local network segment
//
// # Thread Safety
//
// Engines and strategies hold no per-run state and may be invoked concurrently.
// Each SSDP run acquires and releases its own multicast capability.
package discovery
