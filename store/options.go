package store

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/codec"
	"github.com/unkn0wn-root/replaycache/genstore"
	"github.com/unkn0wn-root/replaycache/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultFetchTimeout = 30 * time.Second
)

var (
	ErrFetchRequired     = errors.New("replaycache/store: Fetch is required")
	ErrNamespaceRequired = errors.New("replaycache/store: Namespace is required")
	ErrCodecRequired     = errors.New("replaycache/store: Codec is required when Provider is set")
)

// Fetcher loads the value for key from the system of record.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

type Options[V any] struct {
	// Fetch is called when neither the in-memory state nor the L2 has a
	// value for the key's current generation.
	Fetch Fetcher[V]

	// Namespace scopes L2 keys and generations, e.g. "app:prod:product".
	Namespace string

	// Provider is an optional L2 byte store shared between replicas.
	Provider provider.Provider
	// Codec encodes values for the Provider.
	Codec codec.Codec[V]
	// GenStore holds per-key generations. nil => genstore.NewLocal(0, 0).
	GenStore genstore.GenStore

	TTL          time.Duration // L2 entry TTL; 0 => 10m
	FetchTimeout time.Duration // per fetch; 0 => 30s

	Logger replaycache.Logger // nil => NopLogger
	Hooks  replaycache.Hooks  // nil => NopHooks
}

func (o Options[V]) validate() error {
	switch {
	case o.Fetch == nil:
		return ErrFetchRequired
	case o.Namespace == "":
		return ErrNamespaceRequired
	case o.Provider != nil && o.Codec == nil:
		return ErrCodecRequired
	}
	return nil
}
