// Package auth provides authentication and authorization for dbp-gateway.
//
// # Authentication
//
// Clients authenticate with an API key carried in a single designated header:
//
//	X-API-Key: <key>
//
// Keys are loaded once from configuration into an immutable map. Each key maps
// to a client identity and a permission set. A missing header and an unknown
// key are indistinguishable to the caller; the difference is only logged.
//
// When a JWT secret is configured, a client may instead present a bearer token
// whose "sub" claim names a configured client:
//
//	Authorization: Bearer <jwt>
//
// Tokens are minted with Provider.IssueToken (see `dbp-server token`).
//
// # Authorization
//
// Permissions are colon-delimited "type:name:action" strings with "*" allowed
// per segment. Authorize checks, in order:
//
//	tool:echo:execute   exact
//	tool:echo:*         any action on this target
//	tool:*:execute      this action on any target of the type
//	tool:*:*            anything of the type
//	*:*:*               everything
//
// # Disabled Mode
//
// With authentication disabled every request runs as the "anonymous" client
// holding "*:*:*" and Authorize always succeeds. The provider logs a warning at
// startup so the bypass is visible in audit trails.
//
// # Context Propagation
//
//	ctx = auth.WithAuth(ctx, authCtx)
//	authCtx := auth.FromContext(ctx)
package auth
