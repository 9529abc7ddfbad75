package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/replaycache/provider"
)

var ErrInvalidConfig = errors.New("ristretto provider: NumCounters, MaxCost and BufferItems must be positive")

type Provider struct {
	c    *rc.Cache
	sync bool
}

var _ provider.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// SyncWrites waits for the write buffer after every Set so that a Get
	// right after a successful Set hits. Costs throughput; useful in tests
	// and for low write rates.
	SyncWrites bool
}

// DefaultConfig sizes the cache for roughly maxBytes of payload.
func DefaultConfig(maxBytes int64) Config {
	return Config{
		NumCounters: max(maxBytes/100, 1000), // ~10x the expected item count at ~1KiB per entry
		MaxCost:     maxBytes,
		BufferItems: 64,
	}
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, ErrInvalidConfig
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, sync: cfg.SyncWrites}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set charges len(value) when cost is not positive.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	var ok bool
	if ttl > 0 {
		ok = p.c.SetWithTTL(key, value, cost, ttl)
	} else {
		ok = p.c.Set(key, value, cost)
	}
	if ok && p.sync {
		p.c.Wait()
	}
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics is nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
