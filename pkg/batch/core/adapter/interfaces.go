package adapter

import (
	"context"
)

// ResourceConnection represents a generic connection to an external resource.
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "sqlite").
	Type() string
	// Name returns the connection name (e.g., "batch").
	Name() string
}

// ResourceConnectionResolver resolves a named resource connection.
type ResourceConnectionResolver interface {
	// ResolveConnection resolves a resource connection instance by name.
	// Implementations make sure the returned connection is usable, re-establishing it if necessary.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
