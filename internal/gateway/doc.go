// Package gateway wires the dbp-server together and runs its listeners.
//
// # Overview
//
// New builds every long-lived object from a config.Config: the SQLite store,
// the API-key provider, the component container, the tool and resource
// registries, and the MCP router. Nothing is global; tests construct as many
// gateways as they like.
//
// # Lifecycle
//
//  1. New: construct (no I/O beyond opening the database)
//  2. Initialize: initialize components in registration order
//  3. Serve / Run: accept HTTP and, when configured, gRPC connections
//  4. Shutdown: stop listeners, close components in reverse order, close the store
//
// # Endpoints
//
// HTTP:
//
//	POST /mcp            request envelope in, response envelope out
//	POST /mcp/stream     same, answered as server-sent events
//	GET  /mcp/tools      tools the caller may execute
//	GET  /mcp/resources  resources the caller may get
//	GET  /health         liveness
//	GET  /health/ready   component readiness
//
// gRPC (optional): dbp.mcp.v1.MCP/Handle plus the standard health service.
//
// # Listeners
//
// Plain TCP on server.http_addr and server.grpc_addr, or a tsnet node when
// tailscale.enabled is set. On a tailnet gRPC listens on :50051 and HTTP on
// :80 (or :443 with tailscale.https).
package gateway
