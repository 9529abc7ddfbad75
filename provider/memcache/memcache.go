// Package memcache is an L2 provider backed by bradfitz/gomemcache.
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/replaycache/provider"
)

// memcached rejects keys longer than 250 bytes or containing spaces and
// control characters.
const maxKeyLen = 250

// Relative expirations above 30 days are read by memcached as unix times.
const maxRelativeTTL = 30 * 24 * time.Hour

var ErrNoServers = errors.New("memcache provider: at least one server is required")

type Provider struct {
	c *mc.Client
}

var _ provider.Provider = (*Provider)(nil)

type Config struct {
	Servers      []string
	Timeout      time.Duration // 0 => gomemcache default
	MaxIdleConns int           // 0 => gomemcache default
}

func New(cfg Config) (*Provider, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	c := mc.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(safeKey(key))
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	err := p.c.Set(&mc.Item{
		Key:        safeKey(key),
		Value:      value,
		Expiration: expiration(ttl, time.Now()),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(safeKey(key))
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil
	}
	return err
}

func (p *Provider) Close(context.Context) error {
	return p.c.Close()
}

// safeKey hashes keys memcached would refuse. Hashed keys keep a readable
// prefix so they still group by namespace in stats dumps.
func safeKey(k string) string {
	if len(k) <= maxKeyLen && !strings.ContainsFunc(k, badKeyRune) {
		return k
	}
	sum := sha256.Sum256([]byte(k))
	h := hex.EncodeToString(sum[:])
	prefix := strings.Map(func(r rune) rune {
		if badKeyRune(r) {
			return '_'
		}
		return r
	}, k)
	if room := maxKeyLen - len(h) - 1; len(prefix) > room {
		prefix = prefix[:room]
	}
	return prefix + "#" + h
}

func badKeyRune(r rune) bool {
	return r <= ' ' || r == 0x7f || r > 0x7e
}

func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeTTL {
		at := now.Add(ttl).Unix()
		if at > math.MaxInt32 {
			return 0
		}
		return int32(at)
	}
	return int32((ttl + time.Second - 1) / time.Second) // round up; 0 means forever
}
