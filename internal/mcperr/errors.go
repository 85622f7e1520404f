// ABOUTME: Closed error taxonomy for the MCP core: stable codes and typed Go errors.
// ABOUTME: Components return these; only the MCP error handler converts them to wire errors.

package mcperr

import (
	"errors"
	"fmt"
)

// Code is a stable taxonomy key consumed by clients.
type Code string

const (
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeAuthorizationFailed  Code = "AUTHORIZATION_FAILED"
	CodeDependencyError      Code = "DEPENDENCY_ERROR"
	CodeResourceNotFound     Code = "RESOURCE_NOT_FOUND"
	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeInvalidParameters    Code = "INVALID_PARAMETERS"
	CodeNotImplemented       Code = "NOT_IMPLEMENTED"
	CodeToolNotFound         Code = "TOOL_NOT_FOUND"
	CodeMalformedRequest     Code = "MALFORMED_REQUEST"
	CodeExecutionError       Code = "EXECUTION_ERROR"
	CodeConfigurationError   Code = "CONFIGURATION_ERROR"
	CodeMissingDependency    Code = "MISSING_DEPENDENCY"
	CodeInternalServerError  Code = "INTERNAL_SERVER_ERROR"
)

// Codes lists every code in the closed enumeration.
var Codes = []Code{
	CodeAuthenticationFailed,
	CodeAuthorizationFailed,
	CodeDependencyError,
	CodeResourceNotFound,
	CodePermissionDenied,
	CodeInvalidParameters,
	CodeNotImplemented,
	CodeToolNotFound,
	CodeMalformedRequest,
	CodeExecutionError,
	CodeConfigurationError,
	CodeMissingDependency,
	CodeInternalServerError,
}

// Valid reports whether c belongs to the closed enumeration.
func (c Code) Valid() bool {
	for _, known := range Codes {
		if c == known {
			return true
		}
	}
	return false
}

// Error is the wire-level error object carried by an error response.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface so a decoded wire error can be returned
// by clients as a Go error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrNotImplemented marks operations that exist but are not available.
var ErrNotImplemented = errors.New("not implemented")

// AuthenticationError indicates a missing or unknown credential. Reason is for
// server-side logs only; clients never see it.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}

// AuthorizationError indicates a valid credential lacking the permission
// needed for the requested action.
type AuthorizationError struct {
	ClientID           string
	RequiredPermission string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("client %q lacks permission %q", e.ClientID, e.RequiredPermission)
}

// ComponentNotFoundError indicates a component that is unknown, or known but
// not yet initialized.
type ComponentNotFoundError struct {
	Name           string
	NotInitialized bool
}

func (e *ComponentNotFoundError) Error() string {
	if e.NotInitialized {
		return fmt.Sprintf("component %q is not initialized", e.Name)
	}
	return fmt.Sprintf("component %q not found", e.Name)
}

// ToolNotFoundError indicates a request for an unregistered tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// ResourceNotFoundError indicates an unregistered resource, or a resource
// handler that has no entry for the given id.
type ResourceNotFoundError struct {
	Name string
	ID   string
}

func (e *ResourceNotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("resource %q has no entry %q", e.Name, e.ID)
	}
	return fmt.Sprintf("resource %q not found", e.Name)
}

// MalformedRequestError indicates a structurally invalid request.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}

// InvalidParametersError indicates payload values of the wrong shape.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	if e.Field == "" {
		return "invalid parameters: " + e.Reason
	}
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// InvalidParameter is shorthand for building an InvalidParametersError.
func InvalidParameter(field, reason string) error {
	return &InvalidParametersError{Field: field, Reason: reason}
}

// ExecutionError indicates a handler failed during its business logic.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConfigurationError indicates server misconfiguration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration is shorthand for building a ConfigurationError.
func Configuration(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// MissingDependencyError indicates an optional library or service is absent.
type MissingDependencyError struct {
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency %q", e.Dependency)
}

// Classified reports whether err, or anything it wraps, is one of the typed
// errors in this package.
func Classified(err error) bool {
	var (
		authn   *AuthenticationError
		authz   *AuthorizationError
		comp    *ComponentNotFoundError
		tool    *ToolNotFoundError
		res     *ResourceNotFoundError
		bad     *MalformedRequestError
		params  *InvalidParametersError
		exec    *ExecutionError
		cfg     *ConfigurationError
		missing *MissingDependencyError
	)
	return errors.As(err, &authn) ||
		errors.As(err, &authz) ||
		errors.As(err, &comp) ||
		errors.As(err, &tool) ||
		errors.As(err, &res) ||
		errors.As(err, &bad) ||
		errors.As(err, &params) ||
		errors.As(err, &exec) ||
		errors.As(err, &cfg) ||
		errors.As(err, &missing) ||
		errors.Is(err, ErrNotImplemented)
}
