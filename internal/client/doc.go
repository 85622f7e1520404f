// Package client is an HTTP client for dbp-server.
//
// # Overview
//
// Client wraps the server's HTTP surface:
//
//   - Call: POST /mcp, one request envelope in, one response envelope out
//   - Stream: POST /mcp/stream, progress events delivered to a callback
//     before the final envelope
//   - Tools / Resources: descriptor listings filtered to the caller
//   - Health / Ready: liveness and component readiness
//
// An envelope with status "error" is not a Go error: Call and Stream return
// it with a nil error so callers can inspect the wire code. Go errors are
// reserved for transport failures and unexpected HTTP statuses (*HTTPError).
//
// # Usage
//
//	c, err := client.New(client.Config{BaseURL: "http://127.0.0.1:8080", APIKey: key})
//	resp, err := c.Tool(ctx, "dbp_general_query", map[string]any{"query": "auth"})
package client
