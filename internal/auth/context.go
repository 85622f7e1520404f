// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
	"sort"
)

// Method records how an AuthContext was established.
type Method string

const (
	MethodAPIKey   Method = "api_key"
	MethodToken    Method = "token"
	MethodDisabled Method = "disabled"
)

// AnonymousClientID is the client identity used when authentication is disabled.
const AnonymousClientID = "anonymous"

// AuthContext holds the authenticated identity resolved for a single request.
// It is read-only once built; handlers receive it alongside their payload.
type AuthContext struct {
	ClientID    string
	Permissions map[string]struct{}
	Method      Method
}

// Anonymous reports whether this is the bypass context used when authentication
// is disabled.
func (a *AuthContext) Anonymous() bool {
	return a.Method == MethodDisabled
}

// HasPermission reports whether the exact permission string is held.
func (a *AuthContext) HasPermission(permission string) bool {
	_, ok := a.Permissions[permission]
	return ok
}

// Allows checks the five permission shapes, most specific first:
// type:name:action, type:name:*, type:*:action, type:*:*, *:*:*.
func (a *AuthContext) Allows(resourceType, resourceName, action string) bool {
	if a == nil {
		return false
	}
	for _, candidate := range candidatePermissions(resourceType, resourceName, action) {
		if a.HasPermission(candidate) {
			return true
		}
	}
	return false
}

// PermissionList returns the held permissions in sorted order.
func (a *AuthContext) PermissionList() []string {
	out := make([]string, 0, len(a.Permissions))
	for p := range a.Permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RequiredPermission formats the exact permission needed for an action.
func RequiredPermission(resourceType, resourceName, action string) string {
	return resourceType + ":" + resourceName + ":" + action
}

func candidatePermissions(resourceType, resourceName, action string) [5]string {
	return [5]string{
		RequiredPermission(resourceType, resourceName, action),
		RequiredPermission(resourceType, resourceName, "*"),
		RequiredPermission(resourceType, "*", action),
		RequiredPermission(resourceType, "*", "*"),
		"*:*:*",
	}
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// MustFromContext retrieves the AuthContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *AuthContext {
	auth := FromContext(ctx)
	if auth == nil {
		panic("auth: AuthContext not found in context")
	}
	return auth
}
