// Package provider defines the L2 byte store a replaycache store can put in
// front of its fetcher.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes previously passed to Set for a key. The store frames every value with
// its generation (internal/wire) and rejects frames it cannot parse, so a
// transforming provider looks like a permanently cold cache.
//
// The keyspace "replaycache:<ns>:" is owned by the store.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Noop never stores anything. Every Get is a miss.
type Noop struct{}

var _ Provider = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, nil
}
func (Noop) Del(context.Context, string) error { return nil }
func (Noop) Close(context.Context) error       { return nil }
