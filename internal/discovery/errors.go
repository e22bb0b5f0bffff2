package discovery

import (
	"errors"
	"fmt"
)

// Strategy errors are informational: they explain an empty contribution but
// never fail DiscoverAll.
var (
	// ErrNoSubnet means no up, non-loopback interface carries a private IPv4
	// address, so the active range probe cannot derive a /24 prefix.
	ErrNoSubnet = errors.New("no site-local IPv4 interface found")

	// ErrMulticastUnavailable means the multicast-receive capability could not
	// be acquired on any interface.
	ErrMulticastUnavailable = errors.New("multicast reception unavailable")

	// ErrStrategyPanic marks a strategy that recovered from a panic internally.
	ErrStrategyPanic = errors.New("strategy panicked")
)

// DiscoveryError is the generic discovery failure returned by the engine when
// the caller cancels or a failure escapes a strategy's own handling.
type DiscoveryError struct {
	Strategy string // empty when the failure is not tied to one strategy
	Err      error
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("device discovery failed in %s: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("device discovery failed: %v", e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
