// Package store is a ready-made replaycache.Source.
//
// It keeps one behavior subject of load state per key and runs fetches on
// its own goroutines. Concurrent loads of one key share a single fetch, an
// optional L2 provider is read before the fetcher, and completions that were
// overtaken by a newer load are dropped.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/codec"
	"github.com/unkn0wn-root/replaycache/genstore"
	"github.com/unkn0wn-root/replaycache/internal/util"
	"github.com/unkn0wn-root/replaycache/internal/wire"
	"github.com/unkn0wn-root/replaycache/provider"
	"github.com/unkn0wn-root/replaycache/stream"
)

type slot[V any] struct {
	state  *stream.Subject[replaycache.State[V]]
	ticket atomic.Uint64 // bumped by every Dispatch and Put
}

type Store[V any] struct {
	ns      string
	fetch   Fetcher[V]
	prov    provider.Provider
	codec   codec.Codec[V]
	gens    genstore.GenStore
	ttl     time.Duration
	timeout time.Duration
	log     replaycache.Logger
	hooks   replaycache.Hooks

	mu     sync.Mutex
	slots  map[string]*slot[V]
	closed bool

	sf     singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

var _ replaycache.Source[int] = (*Store[int])(nil)

func New[V any](opts Options[V]) (*Store[V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Store[V]{
		ns:      opts.Namespace,
		fetch:   opts.Fetch,
		prov:    opts.Provider,
		codec:   opts.Codec,
		gens:    opts.GenStore,
		ttl:     opts.TTL,
		timeout: opts.FetchTimeout,
		log:     opts.Logger,
		hooks:   opts.Hooks,
		slots:   make(map[string]*slot[V]),
	}
	if s.gens == nil {
		s.gens = genstore.NewLocal(0, 0)
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.timeout <= 0 {
		s.timeout = defaultFetchTimeout
	}
	if s.log == nil {
		s.log = replaycache.NopLogger{}
	}
	if s.hooks == nil {
		s.hooks = replaycache.NopHooks{}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// State returns the key's state stream. It starts Unrequested.
func (s *Store[V]) State(key string) stream.Stream[replaycache.State[V]] {
	return s.slot(key).state
}

// Snapshot returns the key's current state without subscribing.
func (s *Store[V]) Snapshot(key string) replaycache.State[V] {
	st, _ := s.slot(key).state.Value()
	return st
}

// Dispatch marks the key Loading, keeping its last value, and starts a
// fetch. A reload bypasses any fetch already in flight for the key and
// invalidates its L2 entry.
func (s *Store[V]) Dispatch(cmd replaycache.LoadCommand) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug("dispatch after close ignored", s.fields(cmd.Key, cmd.Reason))
		return
	}
	sl := s.slotLocked(cmd.Key)
	s.wg.Add(1)
	s.mu.Unlock()

	reload := cmd.Reason == replaycache.ReasonReload
	if reload {
		s.sf.Forget(cmd.Key)
	}

	var ticket uint64
	sl.state.Update(func(cur replaycache.State[V], _ bool) (replaycache.State[V], bool) {
		ticket = sl.ticket.Add(1)
		if cur.Loading {
			return cur, false
		}
		return replaycache.State[V]{Loading: true, Value: cur.Value}, true
	})

	s.log.Debug("load started", s.fields(cmd.Key, cmd.Reason))
	go s.run(cmd.Key, sl, ticket, reload)
}

// Put records value as a successful load of key. Loads still in flight for
// key are superseded.
func (s *Store[V]) Put(key string, value V) {
	sl := s.slot(key)
	sl.state.Update(func(replaycache.State[V], bool) (replaycache.State[V], bool) {
		sl.ticket.Add(1)
		return replaycache.State[V]{Success: true, Value: value}, true
	})
}

// Close stops accepting loads and waits for in-flight ones. If ctx ends
// first, in-flight fetches are cancelled and ctx's error is returned after
// the generation store and provider are closed.
func (s *Store[V]) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
		errs = append(errs, ctx.Err())
	}
	s.cancel()

	if err := s.gens.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.prov != nil {
		if err := s.prov.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store[V]) slot(key string) *slot[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotLocked(key)
}

func (s *Store[V]) slotLocked(key string) *slot[V] {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot[V]{state: stream.NewBehavior(replaycache.State[V]{})}
		s.slots[key] = sl
	}
	return sl
}

func (s *Store[V]) run(key string, sl *slot[V], ticket uint64, reload bool) {
	defer s.wg.Done()

	res, err, shared := s.sf.Do(key, func() (any, error) {
		return s.load(key, reload)
	})
	if shared {
		s.log.Debug("load joined in-flight fetch", replaycache.KeyFields(s.ns, key))
	}

	var v V
	if err == nil {
		v, _ = res.(V)
	} else {
		s.log.Error("load failed", s.errFields(key, err))
		s.hooks.FetchFailed(key, err)
	}

	stale := false
	sl.state.Update(func(cur replaycache.State[V], _ bool) (replaycache.State[V], bool) {
		if sl.ticket.Load() != ticket {
			stale = true
			return cur, false
		}
		if err != nil {
			return replaycache.State[V]{
				Error: true,
				Value: cur.Value,
				Cause: &replaycache.LoadError{Key: key, Err: err},
			}, true
		}
		return replaycache.State[V]{Success: true, Value: v}, true
	})
	if stale {
		s.log.Warn("stale completion dropped", replaycache.KeyFields(s.ns, key))
		s.hooks.StaleCompletion(key)
	}
}

// load runs once per singleflight call. A reload bumps the generation so
// every L2 copy written under the old one stops matching.
func (s *Store[V]) load(key string, reload bool) (V, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var (
		gen   uint64
		genOK = true
		err   error
	)
	if reload {
		gen, err = s.gens.Bump(ctx, key)
	} else {
		gen, err = s.gens.Current(ctx, key)
	}
	if err != nil {
		// without a generation the L2 can be neither trusted nor written
		genOK = false
		s.log.Warn("generation unavailable; bypassing L2", s.errFields(key, err))
		s.hooks.ProviderError("gen", key, err)
	}

	if s.prov != nil && genOK && !reload {
		if v, ok := s.readL2(ctx, key, gen); ok {
			return v, nil
		}
	}

	v, err := s.fetch(ctx, key)
	if err != nil {
		return v, err
	}

	if s.prov != nil && genOK {
		s.writeL2(ctx, key, gen, v)
	}
	return v, nil
}

func (s *Store[V]) readL2(ctx context.Context, key string, gen uint64) (V, bool) {
	var zero V
	sk := util.StorageKey(s.ns, key)

	b, hit, err := s.prov.Get(ctx, sk)
	if err != nil {
		s.log.Warn("L2 get failed", s.errFields(key, err))
		s.hooks.ProviderError("get", key, err)
		return zero, false
	}
	if !hit {
		return zero, false
	}

	e, err := wire.Decode(b)
	if err != nil {
		s.dropCorrupt(ctx, key, sk, err)
		return zero, false
	}
	if e.Gen != gen {
		return zero, false
	}
	v, err := s.codec.Decode(e.Payload)
	if err != nil {
		s.dropCorrupt(ctx, key, sk, err)
		return zero, false
	}

	f := replaycache.KeyFields(s.ns, key)
	f["age"] = time.Since(e.StoredAt).String()
	s.log.Debug("L2 hit", f)
	return v, true
}

func (s *Store[V]) dropCorrupt(ctx context.Context, key, sk string, err error) {
	s.log.Warn("L2 entry undecodable; deleting", s.errFields(key, err))
	s.hooks.ProviderError("decode", key, err)
	_ = s.prov.Del(ctx, sk)
}

// writeL2 skips the write if the generation moved while fetching.
func (s *Store[V]) writeL2(ctx context.Context, key string, gen uint64, v V) {
	payload, err := s.codec.Encode(v)
	if err != nil {
		s.log.Warn("L2 encode failed", s.errFields(key, err))
		s.hooks.ProviderError("encode", key, err)
		return
	}
	if cur, err := s.gens.Current(ctx, key); err != nil || cur != gen {
		return
	}

	frame := wire.Encode(gen, time.Now(), payload)
	ok, err := s.prov.Set(ctx, util.StorageKey(s.ns, key), frame, int64(len(frame)), s.ttl)
	if err != nil {
		s.log.Warn("L2 set failed", s.errFields(key, err))
		s.hooks.ProviderError("set", key, err)
		return
	}
	if !ok {
		s.log.Debug("L2 set rejected", replaycache.KeyFields(s.ns, key))
	}
}

func (s *Store[V]) fields(key, reason string) replaycache.Fields {
	f := replaycache.KeyFields(s.ns, key)
	f["reason"] = reason
	return f
}

func (s *Store[V]) errFields(key string, err error) replaycache.Fields {
	f := replaycache.KeyFields(s.ns, key)
	f["err"] = err
	return f
}
