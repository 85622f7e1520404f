// ABOUTME: HTTP middleware for API-key authentication on listing endpoints
// ABOUTME: Resolves the caller via the Provider and adds the AuthContext to the request context

package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// authFailedBody is the 401 body, the same error object the router returns.
var authFailedBody = struct {
	Error mcperr.Error `json:"error"`
}{Error: mcperr.Error{Code: mcperr.CodeAuthenticationFailed, Message: "Authentication failed"}}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that authenticates the request
// with the Provider and attaches the AuthContext using WithAuth. Failed
// authentication is answered with 401 and never reaches next.
func HTTPAuthMiddleware(p *Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := p.Authenticate(HTTPHeaders(r.Header))
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(authFailedBody)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
