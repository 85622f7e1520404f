// Package mcp implements the request-handling core of the DBP server.
//
// # Overview
//
// Clients send a request envelope naming either a tool (a callable action) or
// a resource (an addressable data source). The Server authenticates the
// caller, routes the request to a registered handler, checks the caller's
// permission, invokes the handler and wraps the outcome in a response
// envelope. Every failure is translated to a wire error by the ErrorHandler,
// so HandleRequest never returns a Go error.
//
// # Envelope
//
// Request:
//
//	{"id": "1", "type": "tool", "target": "echo", "data": {"x": 1}, "headers": {}}
//
// Response (exactly one of result or error is present):
//
//	{"id": "1", "status": "success", "result": {"x": 1}}
//	{"id": "1", "status": "error", "error": {"code": "TOOL_NOT_FOUND", "message": "..."}}
//
// Resource targets are split on the first "/": "documentation/design.md"
// routes to the "documentation" resource with id "design.md", while
// "documentation" alone addresses the resource root.
//
// # State Machine
//
//	received -> authenticated -> routed -> authorized -> executed -> responded
//
// Any stage may fail; the last completed stage is logged and audited.
// Authorization asks for "tool:<name>:execute" or "resource:<name>:get".
//
// # Transports
//
//   - POST /mcp - one request, one JSON response (HTTP 200 for every routed outcome)
//   - POST /mcp/stream - Server-Sent Events: progress events, then one response event
//   - GET /mcp/tools, GET /mcp/resources - descriptor listings filtered by permission
//   - gRPC dbp.mcp.v1.MCP/Handle - the envelope as google.protobuf.Struct
//
// # Usage
//
//	tools := mcp.NewToolRegistry(logger)
//	resources := mcp.NewResourceRegistry(logger)
//	_ = mcp.RegisterHandler(tools, resources, myTool)
//
//	server, err := mcp.NewServer(mcp.Config{
//		Tools:     tools,
//		Resources: resources,
//		Auth:      provider,
//		Logger:    logger,
//	})
//	server.RegisterRoutes(mux, nil)
package mcp
