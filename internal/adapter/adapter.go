// ABOUTME: Component adapter with existence and readiness checks on every lookup.
// ABOUTME: Typed accessors cast to the concrete service for each well-known name.

package adapter

import (
	"reflect"

	"github.com/2389/dbp-gateway/internal/components"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Provider supplies components by name. *components.Container satisfies it.
type Provider interface {
	Get(name string) (components.Component, bool)
}

// Adapter is a lookup facade over a Provider. It holds no cache.
type Adapter struct {
	provider Provider
}

// New creates an adapter over p.
func New(p Provider) *Adapter {
	return &Adapter{provider: p}
}

// GetComponent returns the named component if it exists and is initialized.
func (a *Adapter) GetComponent(name string) (components.Component, error) {
	if a == nil || a.provider == nil {
		return nil, &mcperr.ComponentNotFoundError{Name: name}
	}
	comp, ok := a.provider.Get(name)
	if !ok || comp == nil {
		return nil, &mcperr.ComponentNotFoundError{Name: name}
	}
	if !comp.IsInitialized() {
		return nil, &mcperr.ComponentNotFoundError{Name: name, NotInitialized: true}
	}
	return comp, nil
}

// typed looks up name and asserts it to T.
func typed[T any](a *Adapter, name string) (T, error) {
	var zero T
	comp, err := a.GetComponent(name)
	if err != nil {
		return zero, err
	}
	t, ok := comp.(T)
	if !ok {
		return zero, mcperr.Configuration("component %q has type %T, want %s", name, comp, reflect.TypeFor[T]())
	}
	return t, nil
}

// Documentation returns the document store.
func (a *Adapter) Documentation() (*components.DocStore, error) {
	return typed[*components.DocStore](a, components.NameDocumentation)
}

// MetadataExtraction returns the metadata extractor.
func (a *Adapter) MetadataExtraction() (*components.MetadataExtractor, error) {
	return typed[*components.MetadataExtractor](a, components.NameMetadataExtraction)
}

// DocRelationships returns the link graph service.
func (a *Adapter) DocRelationships() (*components.Relationships, error) {
	return typed[*components.Relationships](a, components.NameDocRelationships)
}

// ConsistencyAnalysis returns the consistency analyzer.
func (a *Adapter) ConsistencyAnalysis() (*components.ConsistencyAnalyzer, error) {
	return typed[*components.ConsistencyAnalyzer](a, components.NameConsistencyAnalysis)
}

// RecommendationGenerator returns the recommendation generator.
func (a *Adapter) RecommendationGenerator() (*components.RecommendationGenerator, error) {
	return typed[*components.RecommendationGenerator](a, components.NameRecommendationGenerator)
}

// Coordinator returns the query coordinator.
func (a *Adapter) Coordinator() (components.QueryCoordinator, error) {
	return typed[components.QueryCoordinator](a, components.NameCoordinator)
}

