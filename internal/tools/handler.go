// ABOUTME: Generic typed tool and resource wrappers over the mcp handler interfaces.
// ABOUTME: Decode payloads, validate inputs, and classify unexpected failures as execution errors.

package tools

import (
	"context"
	"errors"
	"io/fs"

	"github.com/invopop/jsonschema"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/mcp"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

// validator is implemented by inputs with constraints beyond their shape.
type validator interface {
	validate() error
}

// tool adapts a typed function to mcp.ToolHandler.
type tool[In, Out any] struct {
	name        string
	description string
	fn          func(ctx context.Context, in In, authCtx *auth.AuthContext) (Out, error)
}

func newTool[In, Out any](name, description string, fn func(context.Context, In, *auth.AuthContext) (Out, error)) *tool[In, Out] {
	return &tool[In, Out]{name: name, description: description, fn: fn}
}

func (t *tool[In, Out]) Name() string        { return t.name }
func (t *tool[In, Out]) Description() string { return t.description }

func (t *tool[In, Out]) InputSchema() *jsonschema.Schema  { return mcp.ReflectSchema[In]() }
func (t *tool[In, Out]) OutputSchema() *jsonschema.Schema { return mcp.ReflectSchema[Out]() }

// Execute implements mcp.ToolHandler.
func (t *tool[In, Out]) Execute(ctx context.Context, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error) {
	var in In
	if err := decode(payload, &in); err != nil {
		return nil, err
	}
	out, err := t.fn(ctx, in, authCtx)
	if err != nil {
		return nil, classify(t.name, err)
	}
	return mcp.ToResult(out)
}

// resource adapts a typed function to mcp.ResourceHandler. The payload
// carries optional query parameters.
type resource[In, Out any] struct {
	name        string
	description string
	fn          func(ctx context.Context, id *string, in In, authCtx *auth.AuthContext) (Out, error)
}

func newResource[In, Out any](name, description string, fn func(context.Context, *string, In, *auth.AuthContext) (Out, error)) *resource[In, Out] {
	return &resource[In, Out]{name: name, description: description, fn: fn}
}

func (r *resource[In, Out]) Name() string        { return r.name }
func (r *resource[In, Out]) Description() string { return r.description }

func (r *resource[In, Out]) InputSchema() *jsonschema.Schema  { return mcp.ReflectSchema[In]() }
func (r *resource[In, Out]) OutputSchema() *jsonschema.Schema { return mcp.ReflectSchema[Out]() }

// Get implements mcp.ResourceHandler.
func (r *resource[In, Out]) Get(ctx context.Context, id *string, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error) {
	var in In
	if err := decode(payload, &in); err != nil {
		return nil, err
	}
	out, err := r.fn(ctx, id, in, authCtx)
	if err != nil {
		return nil, classify(r.name, err)
	}
	return mcp.ToResult(out)
}

func decode(payload map[string]any, into any) error {
	if err := mcp.DecodePayload(payload, into); err != nil {
		return err
	}
	if v, ok := into.(validator); ok {
		return v.validate()
	}
	return nil
}

// classify leaves typed failures alone so the error handler maps them, and
// wraps anything else as an execution error of op.
func classify(op string, err error) error {
	switch {
	case mcperr.Classified(err),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &mcperr.ExecutionError{Op: op, Err: err}
}

// Empty is the input of handlers that take no parameters.
type Empty struct{}
