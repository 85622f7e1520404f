// ABOUTME: Thread-safe name-to-handler registries for tools and resources.
// ABOUTME: Duplicate names are configuration errors; the first registration is kept.

package mcp

import (
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Registry maps unique names to handlers. Registration happens in the
// composition root before serving starts; lookups run concurrently.
type Registry[H Named] struct {
	kind     string
	validate func(name string) error

	mu      sync.RWMutex
	entries map[string]H
	order   []string
	logger  *slog.Logger
}

// ToolRegistry holds ToolHandlers keyed by tool name.
type ToolRegistry = Registry[ToolHandler]

// ResourceRegistry holds ResourceHandlers keyed by resource name (the part of
// a target before the first "/").
type ResourceRegistry = Registry[ResourceHandler]

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry(logger *slog.Logger) *ToolRegistry {
	return newRegistry[ToolHandler]("tool", nil, logger)
}

// NewResourceRegistry creates an empty resource registry. Resource names may
// not contain "/" since targets are split on it.
func NewResourceRegistry(logger *slog.Logger) *ResourceRegistry {
	return newRegistry[ResourceHandler]("resource", func(name string) error {
		if strings.Contains(name, "/") {
			return mcperr.Configuration("resource name %q must not contain '/'", name)
		}
		return nil
	}, logger)
}

func newRegistry[H Named](kind string, validate func(string) error, logger *slog.Logger) *Registry[H] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[H]{
		kind:     kind,
		validate: validate,
		entries:  make(map[string]H),
		logger:   logger,
	}
}

// Register adds h under h.Name(). A nil handler, an empty name, or a name
// already present is a ConfigurationError and leaves the registry unchanged.
func (r *Registry[H]) Register(h H) error {
	if isNil(h) {
		return mcperr.Configuration("%s handler is nil", r.kind)
	}
	name := h.Name()
	if name == "" {
		return mcperr.Configuration("%s handler %T has an empty name", r.kind, h)
	}
	if r.validate != nil {
		if err := r.validate(name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return mcperr.Configuration("%s %q already registered", r.kind, name)
	}
	r.entries[name] = h
	r.order = append(r.order, name)

	r.logger.Debug("handler registered",
		"kind", r.kind,
		"name", name,
		"total", len(r.entries),
	)
	return nil
}

// Get returns the handler registered under name. Absence is reported through
// the boolean, never as an error.
func (r *Registry[H]) Get(name string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[name]
	return h, ok
}

// List returns a snapshot of handlers in registration order.
func (r *Registry[H]) List() []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]H, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Names returns a snapshot of registered names in registration order.
func (r *Registry[H]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered handlers.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RegisterHandler sorts h into the right registry by the interface it
// implements. Values implementing neither, or both, are rejected.
func RegisterHandler(tools *ToolRegistry, resources *ResourceRegistry, h any) error {
	if isNil(h) {
		return mcperr.Configuration("handler is nil")
	}
	tool, isTool := h.(ToolHandler)
	resource, isResource := h.(ResourceHandler)
	switch {
	case isTool && isResource:
		return mcperr.Configuration("%T implements both ToolHandler and ResourceHandler", h)
	case isTool:
		return tools.Register(tool)
	case isResource:
		return resources.Register(resource)
	default:
		return mcperr.Configuration("%T implements neither ToolHandler nor ResourceHandler", h)
	}
}

// isNil reports nil interfaces and typed nil pointers alike.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
