// ABOUTME: Handler contracts for tools and resources plus optional descriptive interfaces.
// ABOUTME: Schemas are reflected from Go input/output types and used only for listing.

package mcp

import (
	"context"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/2389/dbp-gateway/internal/auth"
)

// Named is implemented by every registered handler.
type Named interface {
	Name() string
}

// ToolHandler executes a named action. ctx carries cancellation and, on
// streaming transports, a progress callback (see ReportProgress).
type ToolHandler interface {
	Named
	Execute(ctx context.Context, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error)
}

// ResourceHandler reads from a named, addressable data source. resourceID is
// nil when the request addressed the resource root.
type ResourceHandler interface {
	Named
	Get(ctx context.Context, resourceID *string, payload map[string]any, authCtx *auth.AuthContext) (map[string]any, error)
}

// Describer is optionally implemented by handlers to document themselves.
type Describer interface {
	Description() string
}

// SchemaProvider is optionally implemented by handlers that declare their
// input and output shapes. The router never enforces these.
type SchemaProvider interface {
	InputSchema() *jsonschema.Schema
	OutputSchema() *jsonschema.Schema
}

// Descriptor is the listing entry for a registered handler.
type Descriptor struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	InputSchema  *jsonschema.Schema `json:"inputSchema,omitempty"`
	OutputSchema *jsonschema.Schema `json:"outputSchema,omitempty"`
}

// Describe builds a Descriptor from whatever optional interfaces h implements.
func Describe(h Named) Descriptor {
	d := Descriptor{Name: h.Name()}
	if desc, ok := h.(Describer); ok {
		d.Description = desc.Description()
	}
	if sp, ok := h.(SchemaProvider); ok {
		d.InputSchema = sp.InputSchema()
		d.OutputSchema = sp.OutputSchema()
	}
	return d
}

// ReflectSchema reflects T into an inline JSON schema. Pointer types are
// described by their element type.
func ReflectSchema[T any]() *jsonschema.Schema {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	return r.ReflectFromType(t)
}
