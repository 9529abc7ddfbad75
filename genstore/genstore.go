// Package genstore keeps per-key generation counters.
//
// A generation changes whenever a key is reloaded. The store stamps every L2
// entry with the generation it was fetched under and ignores entries whose
// stamp no longer matches, so a reload on one replica invalidates the L2 copy
// for all replicas sharing a Redis generation store.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local (default) for in-process gens, or Redis for distributed gens.
type GenStore interface {
	// Current returns the key's generation; missing => 0.
	Current(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
