// Package demo runs the product-price scenario behind `replaycache demo`.
package demo

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/equal"
	asynchook "github.com/unkn0wn-root/replaycache/hooks/async"
	"github.com/unkn0wn-root/replaycache/internal/config"
	"github.com/unkn0wn-root/replaycache/memo"
	"github.com/unkn0wn-root/replaycache/store"
	"github.com/unkn0wn-root/replaycache/stream"
)

// Product is the value the simulated backend serves.
type Product struct {
	Code  string `json:"code" msgpack:"code" cbor:"code"`
	Price int64  `json:"price" msgpack:"price" cbor:"price"`
	Rev   int64  `json:"rev" msgpack:"rev" cbor:"rev"`
}

var ErrBackend = errors.New("backend unavailable")

// Backend is the simulated system of record.
type Backend struct {
	latency   time.Duration
	failEvery int64
	calls     atomic.Int64
}

func NewBackend(cfg config.Config) *Backend {
	return &Backend{latency: cfg.FetchLatency(), failEvery: int64(cfg.Fetch.FailEvery)}
}

func (b *Backend) Calls() int64 { return b.calls.Load() }

func (b *Backend) Fetch(ctx context.Context, key string) (Product, error) {
	n := b.calls.Add(1)
	if b.latency > 0 {
		t := time.NewTimer(b.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Product{}, ctx.Err()
		}
	}
	if b.failEvery > 0 && n%b.failEvery == 0 {
		return Product{}, fmt.Errorf("fetch %s: %w", key, ErrBackend)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return Product{Code: key, Price: int64(h.Sum32()%10000) + n, Rev: n}, nil
}

// Stats counts hook events. Fed through asynchook, so reads wait for Close.
type Stats struct {
	replaycache.NopHooks
	mu         sync.Mutex
	dispatched map[string]int
	created    int
	connected  int
	released   int
	evicted    int
	stale      int
	failed     int
	l2Errors   int
}

func newStats() *Stats { return &Stats{dispatched: map[string]int{}} }

func (s *Stats) inc(p *int) {
	s.mu.Lock()
	*p++
	s.mu.Unlock()
}

func (s *Stats) StreamCreated(string)                { s.inc(&s.created) }
func (s *Stats) StreamConnected(string)              { s.inc(&s.connected) }
func (s *Stats) StreamReleased(string)               { s.inc(&s.released) }
func (s *Stats) StreamEvicted(string)                { s.inc(&s.evicted) }
func (s *Stats) StaleCompletion(string)              { s.inc(&s.stale) }
func (s *Stats) FetchFailed(string, error)           { s.inc(&s.failed) }
func (s *Stats) ProviderError(string, string, error) { s.inc(&s.l2Errors) }
func (s *Stats) LoadDispatched(_, reason string) {
	s.mu.Lock()
	s.dispatched[reason]++
	s.mu.Unlock()
}

// Report is what a run observed.
type Report struct {
	FetchCalls  int64
	Dispatched  map[string]int
	Created     int
	Connected   int
	Released    int
	Evicted     int
	Stale       int
	Failed      int
	L2Errors    int
	Final       map[string]replaycache.State[Product]
	Renders     []string
	MemoLoads   int
	Observed    map[string][]int64 // key => prices seen by its first observer
	Resubscribe map[string]int64   // key => price replayed after resubscribe
}

// Run executes the scenario and writes a transcript to w.
//
// Every key gets cfg.Observers subscribers at once (one load per key), a
// render loop polls a memoized derivation, the reload key is reloaded, all
// observers leave, and each key is observed once more to show that a
// settled key is replayed without another load.
func Run(ctx context.Context, cfg config.Config, w io.Writer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w = &syncWriter{w: w} // observers print from fetch goroutines
	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	env, err := newL2(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer env.cleanup()

	backend := NewBackend(cfg)
	stats := newStats()
	sink, err := newHooks(cfg, stats, os.Stderr)
	if err != nil {
		if env.provider != nil {
			_ = env.provider.Close(ctx)
		}
		return nil, err
	}
	hooks := asynchook.New(sink, 1, 4096)

	st, err := store.New(store.Options[Product]{
		Fetch:        backend.Fetch,
		Namespace:    cfg.Namespace,
		Provider:     env.provider,
		Codec:        env.codec,
		GenStore:     env.gens,
		TTL:          cfg.TTL(),
		FetchTimeout: cfg.FetchTimeout(),
		Logger:       log,
		Hooks:        hooks,
	})
	if err != nil {
		hooks.Close()
		if env.provider != nil {
			_ = env.provider.Close(ctx)
		}
		return nil, err
	}

	cache, err := replaycache.New(replaycache.Options[Product]{
		Source:         st,
		Namespace:      cfg.Namespace,
		Logger:         log,
		Hooks:          hooks,
		KeepErrors:     cfg.KeepErrors,
		MaxIdleStreams: cfg.MaxIdleStreams,
	})
	if err != nil {
		hooks.Close()
		_ = st.Close(ctx)
		return nil, err
	}

	rep := &Report{
		Observed:    map[string][]int64{},
		Resubscribe: map[string]int64{},
		Final:       map[string]replaycache.State[Product]{},
	}
	var obsMu sync.Mutex

	fmt.Fprintf(w, "== subscribe %d observer(s) to %v\n", cfg.Observers, cfg.Keys)
	var subs []stream.Subscription
	for _, key := range cfg.Keys {
		key := key
		for i := 0; i < cfg.Observers; i++ {
			first := i == 0
			subs = append(subs, cache.Get(key).Subscribe(func(p Product) {
				if !first || p.Code == "" {
					return
				}
				obsMu.Lock()
				rep.Observed[key] = append(rep.Observed[key], p.Price)
				obsMu.Unlock()
			}))
		}
		subs = append(subs, cache.IsLoading(key).Subscribe(func(loading bool) {
			fmt.Fprintf(w, "   %s loading=%v\n", key, loading)
		}))
	}

	if err := settle(ctx, st, cfg); err != nil {
		return nil, closeAll(ctx, st, hooks, err)
	}

	// a fresh params map every tick; deep equality keeps one upstream request
	render := memo.New(memo.FromCache(cache), memo.WithEquality(equal.Deep))
	key := cfg.Keys[0]
	for i := 0; i < cfg.Scenario.RenderTicks; i++ {
		line := fmt.Sprintf("tick %d %s: pending", i, key)
		if p, ok := render.Evaluate(key, equal.Params{"currency": "USD", "fields": []string{"price"}}); ok && p.Code != "" {
			line = fmt.Sprintf("tick %d %s: price=%d rev=%d", i, key, p.Price, p.Rev)
		}
		rep.Renders = append(rep.Renders, line)
		fmt.Fprintln(w, "   "+line)
		if d := cfg.Tick(); d > 0 {
			time.Sleep(d)
		}
	}
	rep.MemoLoads = render.Requests()
	render.Destroy()

	if rk := cfg.Scenario.ReloadKey; rk != "" {
		fmt.Fprintf(w, "== reload %s\n", rk)
		cache.Reload(rk)
		if err := settle(ctx, st, cfg); err != nil {
			return nil, closeAll(ctx, st, hooks, err)
		}
	}

	fmt.Fprintln(w, "== all observers leave")
	for _, s := range subs {
		s.Unsubscribe()
	}

	fmt.Fprintln(w, "== observe again")
	for _, key := range cfg.Keys {
		key := key
		sub := cache.Get(key).Subscribe(func(p Product) {
			obsMu.Lock()
			rep.Resubscribe[key] = p.Price
			obsMu.Unlock()
		})
		sub.Unsubscribe()
	}
	if err := settle(ctx, st, cfg); err != nil {
		return nil, closeAll(ctx, st, hooks, err)
	}

	for _, key := range cfg.Keys {
		rep.Final[key] = st.Snapshot(key)
	}
	if err := closeAll(ctx, st, hooks, nil); err != nil {
		return nil, err
	}

	rep.FetchCalls = backend.Calls()
	stats.mu.Lock()
	rep.Dispatched = stats.dispatched
	rep.Created, rep.Connected, rep.Released, rep.Evicted = stats.created, stats.connected, stats.released, stats.evicted
	rep.Stale, rep.Failed, rep.L2Errors = stats.stale, stats.failed, stats.l2Errors
	stats.mu.Unlock()

	printReport(w, cfg, rep)
	return rep, nil
}

// settle waits until no key is loading.
func settle(ctx context.Context, st *store.Store[Product], cfg config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout())
	defer cancel()
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		busy := false
		for _, k := range cfg.Keys {
			if st.Snapshot(k).Loading {
				busy = true
				break
			}
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for loads to settle: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func closeAll(ctx context.Context, st *store.Store[Product], hooks *asynchook.Hooks, cause error) error {
	err := st.Close(ctx)
	hooks.Close()
	return errors.Join(cause, err)
}

func printReport(w io.Writer, cfg config.Config, rep *Report) {
	fmt.Fprintln(w, "== report")
	keys := append([]string(nil), cfg.Keys...)
	sort.Strings(keys)
	for _, k := range keys {
		s := rep.Final[k]
		switch {
		case s.Error:
			fmt.Fprintf(w, "   %s error=%v (last price %d)\n", k, s.Cause, s.Value.Price)
		default:
			fmt.Fprintf(w, "   %s price=%d rev=%d seen=%v\n", k, s.Value.Price, s.Value.Rev, rep.Observed[k])
		}
	}
	reasons := make([]string, 0, len(rep.Dispatched))
	for r := range rep.Dispatched {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "   dispatched %-11s %d\n", r, rep.Dispatched[r])
	}
	fmt.Fprintf(w, "   fetch calls %d, memo loads %d, stale %d, failed %d, l2 errors %d\n",
		rep.FetchCalls, rep.MemoLoads, rep.Stale, rep.Failed, rep.L2Errors)
	fmt.Fprintf(w, "   streams created %d connected %d released %d evicted %d\n",
		rep.Created, rep.Connected, rep.Released, rep.Evicted)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
