// Package rpc is a JSON-RPC 2.0 client for Kodi-style remote-control players.
//
// Players expose POST /jsonrpc on port 8080 when HTTP remote control is
// enabled. The client covers the commands castscan needs:
//
//	client := rpc.NewClient("192.168.1.20", rpc.DefaultPort)
//	pong, err := client.Ping(ctx)             // "pong"
//	err = client.PlayURL(ctx, "http://nas/movie.mkv")
//	err = client.Stop(ctx)                     // ErrNoActivePlayer when idle
//
// # Error Handling
//
// Failures are returned as *RPCError with a category (network, timeout,
// refused connection, HTTP, parse, remote error). Timeouts, refused
// connections and 5xx responses are retried with exponential backoff.
// GetShortErrorMessage and GetTroubleshootingHint render errors for users.
//
// Pinger adapts the client to discovery.Pinger for the active range probe:
// no retries, and one shared transport for the whole probe pool.
package rpc
