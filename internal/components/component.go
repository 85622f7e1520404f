// ABOUTME: Component contract, embeddable readiness state, and the lifecycle container.
// ABOUTME: Components initialize in registration order and close in reverse.

package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Stable component names. Tools look components up by these keys only.
const (
	NameDocumentation           = "documentation"
	NameMetadataExtraction      = "metadata_extraction"
	NameDocRelationships        = "doc_relationships"
	NameConsistencyAnalysis     = "consistency_analysis"
	NameRecommendationGenerator = "recommendation_generator"
	NameCoordinator             = "llm_coordinator"
)

// Component is a named service that reports whether it is ready for use.
type Component interface {
	Name() string
	IsInitialized() bool
}

// Initializer is implemented by components with startup work.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Closer is implemented by components holding resources.
type Closer interface {
	Close() error
}

// Lifecycle is embedded by components to track readiness. The container
// flips it after Initialize succeeds and clears it on Close.
type Lifecycle struct {
	ready atomic.Bool
}

// IsInitialized reports whether the component finished initialization.
func (l *Lifecycle) IsInitialized() bool {
	return l.ready.Load()
}

func (l *Lifecycle) setInitialized(v bool) {
	l.ready.Store(v)
}

// readiness is satisfied by any type embedding Lifecycle.
type readiness interface {
	setInitialized(bool)
}

// Status is a point-in-time readiness report for one component.
type Status struct {
	Name        string `json:"name"`
	Initialized bool   `json:"initialized"`
}

// Container owns a set of components and their lifecycle.
type Container struct {
	mu     sync.RWMutex
	order  []Component
	byName map[string]Component
	logger *slog.Logger
}

// NewContainer creates an empty container.
func NewContainer(logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		byName: make(map[string]Component),
		logger: logger,
	}
}

// Register adds a component. Names must be unique.
func (c *Container) Register(comp Component) error {
	if comp == nil {
		return mcperr.Configuration("cannot register nil component")
	}
	name := comp.Name()
	if name == "" {
		return mcperr.Configuration("component name must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[name]; exists {
		return mcperr.Configuration("component %q already registered", name)
	}
	c.byName[name] = comp
	c.order = append(c.order, comp)
	return nil
}

// Get returns the named component regardless of readiness.
func (c *Container) Get(name string) (Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.byName[name]
	return comp, ok
}

// Initialize runs each component's initializer in registration order and
// stops at the first failure. Components initialized before the failure stay
// ready; the caller is expected to Close the container.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.RLock()
	order := append([]Component(nil), c.order...)
	c.mu.RUnlock()

	for _, comp := range order {
		if comp.IsInitialized() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if init, ok := comp.(Initializer); ok {
			if err := init.Initialize(ctx); err != nil {
				return fmt.Errorf("initializing component %s: %w", comp.Name(), err)
			}
		}
		if r, ok := comp.(readiness); ok {
			r.setInitialized(true)
		}
		c.logger.Debug("component initialized", "component", comp.Name())
	}
	return nil
}

// Close tears components down in reverse registration order. Every closer
// runs; failures are joined.
func (c *Container) Close() error {
	c.mu.RLock()
	order := append([]Component(nil), c.order...)
	c.mu.RUnlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		comp := order[i]
		if r, ok := comp.(readiness); ok {
			r.setInitialized(false)
		}
		if closer, ok := comp.(Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing component %s: %w", comp.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Status reports readiness for every component in registration order.
func (c *Container) Status() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Status, 0, len(c.order))
	for _, comp := range c.order {
		out = append(out, Status{Name: comp.Name(), Initialized: comp.IsInitialized()})
	}
	return out
}

// Ready reports whether every registered component is initialized.
func (c *Container) Ready() bool {
	for _, s := range c.Status() {
		if !s.Initialized {
			return false
		}
	}
	return true
}
