// Package adapter resolves logical component names to ready services.
//
// Every lookup re-checks both existence and readiness, so a handler never
// receives a component that is absent or still initializing. The typed
// accessors keep each component name in one place.
package adapter
