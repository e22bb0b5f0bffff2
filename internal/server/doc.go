// Package server exposes the device store over a small HTTP and WebSocket API.
//
// # Endpoints
//
//	GET  /api/devices                  known-devices snapshot
//	POST /api/discover                 run discovery (rate limited, 429 when throttled)
//	GET  /api/selected                 selected device or null
//	PUT  /api/selected                 {"address": "...", "port": 8080}; empty address clears
//	PUT  /api/devices/{address}/name   {"name": "..."}; empty name clears
//	POST /api/selected/play            {"url": "..."}
//	POST /api/selected/stop
//	POST /api/selected/pause
//	GET  /api/selected/players
//	GET  /ws                           snapshot stream
//	GET  /metrics                      Prometheus metrics
//	GET  /healthz
//
// Errors use {"error": {"code": "...", "message": "..."}}.
//
// # WebSocket Stream
//
// Each /ws client first receives the current "devices" and "selected"
// messages, then one message per change:
//
//	{"type": "devices", "data": [...]}
//	{"type": "selected", "data": {...} | null}
//
// # Usage Example
//
//	srv := server.New(server.DefaultConfig(), st, nil)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until SIGINT or SIGTERM and then shuts down gracefully.
package server
