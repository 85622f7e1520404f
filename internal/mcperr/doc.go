// Package mcperr defines the closed error taxonomy shared by the MCP core.
//
// # Codes
//
// Every error that reaches a client carries one of a fixed set of string codes:
//
//	AUTHENTICATION_FAILED   missing or unknown credential
//	AUTHORIZATION_FAILED    valid credential, insufficient permission
//	DEPENDENCY_ERROR        a backing component is absent or not initialized
//	RESOURCE_NOT_FOUND      unknown resource or missing file
//	PERMISSION_DENIED       the filesystem refused access
//	INVALID_PARAMETERS      payload values of the wrong shape
//	NOT_IMPLEMENTED         the operation exists but is not available
//	TOOL_NOT_FOUND          unknown tool name
//	MALFORMED_REQUEST       structurally invalid request
//	EXECUTION_ERROR         a handler failed while doing its work
//	CONFIGURATION_ERROR     the server is misconfigured
//	MISSING_DEPENDENCY      an optional library or service is unavailable
//	INTERNAL_SERVER_ERROR   anything unclassified
//
// # Typed errors
//
// Components below the router return the typed errors from this package
// (wrapped with %w as needed). Only the MCP error handler turns them into wire
// errors:
//
//	return nil, &mcperr.ToolNotFoundError{Name: name}
//	return nil, mcperr.InvalidParameter("path", "must be relative")
//
// The wire form is the Error value, which is immutable once built.
package mcperr
