// Package logging provides structured logging for castscan.
//
// This package wraps a process-wide zap logger with convenience functions for the
// logging patterns used by discovery, the remote-control client and the API server.
//
// # Log Levels
//
//   - Debug: raw SSDP datagrams, per-host probe outcomes
//   - Info: strategy results, API requests, selection changes
//   - Warn: strategy failures that were absorbed (no subnet, multicast unavailable)
//   - Error: server startup failures
//
// # Configuration
//
// CLI commands stay silent unless CASTSCAN_LOG_LEVEL is set:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// The API server passes its --log-level flag to Initialize instead.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has returned.
package logging
