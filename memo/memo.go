// Package memo adapts push streams to a render loop.
//
// A Derivation is owned by exactly one call site (a view, a template
// binding). The host calls Evaluate on every tick with the current key and
// parameters; a new upstream stream is requested only when the pair changed
// under the configured equality policy. Evaluate always answers with the
// latest value pushed on the active subscription, or reports that nothing
// has arrived yet. Derivation state is never shared between instances.
package memo

import (
	"sync"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/equal"
	"github.com/unkn0wn-root/replaycache/stream"
)

// Source produces the stream for a (key, params) pair.
type Source[K comparable, V any] func(key K, params equal.Params) stream.Stream[V]

// FromCache derives from a keyed cache; params are ignored by the cache.
func FromCache[V any](c replaycache.Cache[V]) Source[string, V] {
	return func(key string, _ equal.Params) stream.Stream[V] {
		return c.Get(key)
	}
}

// Option configures a Derivation.
type Option func(*config)

type config struct {
	eq       equal.Func
	onChange func()
	log      replaycache.Logger
}

// WithEquality sets the params policy. Default equal.Shallow.
func WithEquality(eq equal.Func) Option {
	return func(c *config) { c.eq = eq }
}

// WithOnChange registers a callback run after each value the active
// subscription delivers (for example to schedule a re-render). It runs on
// the delivery path and must not call Evaluate synchronously.
func WithOnChange(fn func()) Option {
	return func(c *config) { c.onChange = fn }
}

// WithLogger sets the logger. Default replaycache.NopLogger.
func WithLogger(l replaycache.Logger) Option {
	return func(c *config) { c.log = l }
}

// Derivation memoizes the upstream stream of one call site.
type Derivation[K comparable, V any] struct {
	src Source[K, V]
	cfg config

	mu         sync.Mutex
	seen       bool
	lastKey    K
	lastParams equal.Params
	latest     *stream.Latest[V]
	requests   int
	destroyed  bool
}

// New returns a Derivation pulling from src.
func New[K comparable, V any](src Source[K, V], opts ...Option) *Derivation[K, V] {
	cfg := config{eq: equal.Shallow, log: replaycache.NopLogger{}}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.eq == nil {
		cfg.eq = equal.Shallow
	}
	if cfg.log == nil {
		cfg.log = replaycache.NopLogger{}
	}
	return &Derivation[K, V]{
		src:    src,
		cfg:    cfg,
		latest: stream.NewLatest[V](cfg.onChange),
	}
}

// Evaluate returns the best value currently known for (key, params).
// ok is false while no value has been pushed yet. nil params are treated as
// an empty object. After Destroy it always reports pending.
func (d *Derivation[K, V]) Evaluate(key K, params equal.Params) (v V, ok bool) {
	if params == nil {
		params = equal.Params{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return v, false
	}
	if !d.seen || key != d.lastKey || !d.cfg.eq(params, d.lastParams) {
		d.seen = true
		d.lastKey = key
		d.lastParams = params
		d.requests++
		d.cfg.log.Debug("derivation switched", replaycache.Fields{"key": key, "requests": d.requests})
		d.latest.Track(d.src(key, params))
	}
	return d.latest.Value()
}

// Requests returns how many upstream streams have been requested.
func (d *Derivation[K, V]) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

// Destroy releases the active subscription. It is the host's teardown hook
// and may be called any number of times.
func (d *Derivation[K, V]) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.latest.Release()
}
