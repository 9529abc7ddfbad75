package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares per-key generations across processes and survives restarts.
// With a TTL, generation keys expire after the last bump; readers then see
// gen 0 and any L2 entry stamped with an older gen is ignored.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed generation store. ttl <= 0 disables expiry.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "replaycache:gen:" + s.ns + ":" + k }

func (s *Redis) Current(ctx context.Context, k string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// Bump pipelines INCR and EXPIRE in one round-trip when a TTL is set.
func (s *Redis) Bump(ctx context.Context, k string) (uint64, error) {
	key := s.key(k)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires keys itself when a TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying client.
func (s *Redis) Close(context.Context) error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
