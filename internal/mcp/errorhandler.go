// ABOUTME: Centralized translation of Go errors into wire-level MCP errors.
// ABOUTME: Mappings are checked in a fixed order; anything unmatched becomes INTERNAL_SERVER_ERROR.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// maxErrorMessageLen caps the error_message detail of internal errors.
const maxErrorMessageLen = 200

// mapping converts err to a wire error when it recognizes it.
type mapping func(err error) (mcperr.Error, bool)

// ErrorHandler maps errors raised anywhere during request processing to wire
// errors. It is stateless apart from its logger.
type ErrorHandler struct {
	logger   *slog.Logger
	mappings []mapping
}

// NewErrorHandler creates an ErrorHandler with the standard mapping order.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger: logger,
		mappings: []mapping{
			asMapping(func(e *mcperr.AuthenticationError) mcperr.Error {
				return mcperr.Error{Code: mcperr.CodeAuthenticationFailed, Message: "Authentication failed"}
			}),
			asMapping(func(e *mcperr.AuthorizationError) mcperr.Error {
				return mcperr.Error{
					Code:    mcperr.CodeAuthorizationFailed,
					Message: "Authorization failed",
					Data:    map[string]any{"required_permission": e.RequiredPermission},
				}
			}),
			asMapping(func(e *mcperr.ComponentNotFoundError) mcperr.Error {
				return mcperr.Error{
					Code:    mcperr.CodeDependencyError,
					Message: e.Error(),
					Data:    map[string]any{"component": e.Name},
				}
			}),
			isMapping(fs.ErrNotExist, mcperr.CodeResourceNotFound, "Resource not found"),
			isMapping(fs.ErrPermission, mcperr.CodePermissionDenied, "Permission denied"),
			asMapping(func(e *mcperr.InvalidParametersError) mcperr.Error {
				out := mcperr.Error{Code: mcperr.CodeInvalidParameters, Message: e.Error()}
				if e.Field != "" {
					out.Data = map[string]any{"field": e.Field}
				}
				return out
			}),
			asMapping(func(e *json.UnmarshalTypeError) mcperr.Error {
				out := mcperr.Error{
					Code:    mcperr.CodeInvalidParameters,
					Message: fmt.Sprintf("invalid parameters: expected %s, got %s", e.Type, e.Value),
				}
				if e.Field != "" {
					out.Data = map[string]any{"field": e.Field}
				}
				return out
			}),
			asMapping(func(e *strconv.NumError) mcperr.Error {
				return mcperr.Error{Code: mcperr.CodeInvalidParameters, Message: "invalid parameters: " + e.Error()}
			}),
			isMapping(mcperr.ErrNotImplemented, mcperr.CodeNotImplemented, "Not implemented"),
			asMapping(func(e *mcperr.ToolNotFoundError) mcperr.Error {
				return mcperr.Error{
					Code:    mcperr.CodeToolNotFound,
					Message: e.Error(),
					Data:    map[string]any{"tool": e.Name},
				}
			}),
			asMapping(func(e *mcperr.ResourceNotFoundError) mcperr.Error {
				data := map[string]any{"resource": e.Name}
				if e.ID != "" {
					data["resource_id"] = e.ID
				}
				return mcperr.Error{Code: mcperr.CodeResourceNotFound, Message: e.Error(), Data: data}
			}),
			asMapping(func(e *mcperr.MalformedRequestError) mcperr.Error {
				return mcperr.Error{Code: mcperr.CodeMalformedRequest, Message: e.Error()}
			}),
			asMapping(func(e *mcperr.ExecutionError) mcperr.Error {
				return mcperr.Error{Code: mcperr.CodeExecutionError, Message: e.Error()}
			}),
			isMapping(context.DeadlineExceeded, mcperr.CodeExecutionError, "Execution timed out"),
			isMapping(context.Canceled, mcperr.CodeExecutionError, "Request cancelled"),
			asMapping(func(e *mcperr.ConfigurationError) mcperr.Error {
				return mcperr.Error{Code: mcperr.CodeConfigurationError, Message: e.Error()}
			}),
			asMapping(func(e *mcperr.MissingDependencyError) mcperr.Error {
				return mcperr.Error{
					Code:    mcperr.CodeMissingDependency,
					Message: e.Error(),
					Data:    map[string]any{"dependency": e.Dependency},
				}
			}),
		},
	}
}

func asMapping[T error](build func(T) mcperr.Error) mapping {
	return func(err error) (mcperr.Error, bool) {
		var target T
		if !errors.As(err, &target) {
			return mcperr.Error{}, false
		}
		return build(target), true
	}
}

func isMapping(sentinel error, code mcperr.Code, message string) mapping {
	return func(err error) (mcperr.Error, bool) {
		if !errors.Is(err, sentinel) {
			return mcperr.Error{}, false
		}
		return mcperr.Error{Code: code, Message: message}, true
	}
}

// Handle converts err into a wire error. req may be nil when the failure
// happened before a request could be decoded. It never panics: an error
// whose methods panic during mapping (a typed nil, a broken Error or Unwrap)
// becomes INTERNAL_SERVER_ERROR carrying only its type.
func (h *ErrorHandler) Handle(err error, req *Request) (out mcperr.Error) {
	defer func() {
		if r := recover(); r != nil {
			errType := fmt.Sprintf("%T", err)
			h.logger.Error("error mapping panicked", "error_type", errType, "panic", r)
			out = mcperr.Error{
				Code:    mcperr.CodeInternalServerError,
				Message: "Internal server error",
				Data:    map[string]any{"error_type": errType},
			}
		}
	}()
	return h.handle(err, req)
}

func (h *ErrorHandler) handle(err error, req *Request) mcperr.Error {
	if err == nil {
		err = errors.New("nil error")
	}

	attrs := []any{"error", err}
	if req != nil {
		attrs = append(attrs, "request_id", req.ID, "kind", req.Kind, "target", req.Target)
	}

	for _, m := range h.mappings {
		if out, ok := m(err); ok {
			h.logger.Debug("mapped request error", append(attrs, "code", out.Code)...)
			return out
		}
	}

	h.logger.Error("unexpected error while handling request", attrs...)
	return mcperr.Error{
		Code:    mcperr.CodeInternalServerError,
		Message: "Internal server error",
		Data: map[string]any{
			"error_type":    errorType(err),
			"error_message": sanitizeMessage(err.Error()),
		},
	}
}

func errorType(err error) string {
	var p *panicError
	if errors.As(err, &p) {
		return "panic"
	}
	return fmt.Sprintf("%T", err)
}

// sanitizeMessage keeps the first line and truncates it, so stack traces and
// multi-line dumps never reach clients.
func sanitizeMessage(msg string) string {
	msg, _, _ = strings.Cut(msg, "\n")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxErrorMessageLen {
		msg = strings.ToValidUTF8(msg[:maxErrorMessageLen], "") + "..."
	}
	return msg
}
