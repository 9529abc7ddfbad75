package replaycache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unkn0wn-root/replaycache/stream"
)

// handle is what Get hands out. It resolves the registered entry for its key
// on every Subscribe, so a handle kept across an idle eviction still joins
// the key's single upstream connection.
type handle[V any] struct {
	c   *cache[V]
	key string
}

func (h *handle[V]) Subscribe(fn func(V)) stream.Subscription {
	return h.c.subscribe(h, fn)
}

// entry fields other than key, h and shared are guarded by cache.mu.
type entry[V any] struct {
	key    string
	h      *handle[V]
	shared *stream.Shared[V]
	active bool // has a live upstream connection
	pinned int  // Subscribe calls in progress; pinned entries are never evicted
}

type cache[V any] struct {
	ns          string
	src         Source[V]
	log         Logger
	hooks       Hooks
	retryErrors bool

	mu      sync.Mutex
	streams map[string]*entry[V]
	idle    *lru.Cache[string, struct{}] // nil => registry never shrinks
	evicted []string                     // filled by onIdleEvict under mu
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Source == nil {
		return nil, ErrSourceRequired
	}
	if opts.MaxIdleStreams < 0 {
		return nil, ErrNegativeIdle
	}

	c := &cache[V]{
		src:         opts.Source,
		streams:     make(map[string]*entry[V]),
		retryErrors: !opts.KeepErrors,
	}

	// defaults
	c.ns = coalesce(opts.Namespace, defaultNamespace)
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.MaxIdleStreams > 0 {
		idle, err := lru.NewWithEvict[string, struct{}](opts.MaxIdleStreams, c.onIdleEvict)
		if err != nil {
			return nil, err
		}
		c.idle = idle
	}
	return c, nil
}

func (c *cache[V]) Get(key string) stream.Stream[V] {
	c.mu.Lock()
	e, created := c.entryLocked(key, nil)
	evicted := c.takeEvicted()
	c.mu.Unlock()

	if created {
		c.created(key)
	}
	c.notifyEvicted(evicted)
	return e.h
}

// entryLocked returns the registered entry for key, registering a new one
// if needed. A new entry adopts h so the caller's handle stays the one Get
// returns for the key.
func (c *cache[V]) entryLocked(key string, h *handle[V]) (*entry[V], bool) {
	if e, ok := c.streams[key]; ok {
		return e, false
	}
	if h == nil {
		h = &handle[V]{c: c, key: key}
	}
	e := &entry[V]{key: key, h: h}
	e.shared = stream.Share[V](c.upstream(key),
		stream.OnConnect(func() { c.connected(e) }),
		stream.OnDisconnect(func() { c.released(e) }),
	)
	c.streams[key] = e
	if c.idle != nil {
		c.idle.Add(key, struct{}{})
	}
	return e, true
}

func (c *cache[V]) subscribe(h *handle[V], fn func(V)) stream.Subscription {
	c.mu.Lock()
	e, created := c.entryLocked(h.key, h)
	e.pinned++
	if c.idle != nil {
		c.idle.Remove(h.key)
	}
	evicted := c.takeEvicted()
	c.mu.Unlock()

	if created {
		c.created(h.key)
	}
	c.notifyEvicted(evicted)

	sub := e.shared.Subscribe(fn)

	c.mu.Lock()
	e.pinned--
	evicted = nil
	// the observer may have left before the upstream connected
	if e.pinned == 0 && !e.active && c.idle != nil && c.streams[e.key] == e {
		c.idle.Add(e.key, struct{}{})
		evicted = c.takeEvicted()
	}
	c.mu.Unlock()
	c.notifyEvicted(evicted)
	return sub
}

func (c *cache[V]) created(key string) {
	c.log.Debug("shared stream created", KeyFields(c.ns, key))
	c.hooks.StreamCreated(key)
}

func (c *cache[V]) IsLoading(key string) stream.Stream[bool] {
	return c.project(key, func(s State[V]) bool { return s.Loading })
}

func (c *cache[V]) IsSuccess(key string) stream.Stream[bool] {
	return c.project(key, func(s State[V]) bool { return s.Success })
}

func (c *cache[V]) HasError(key string) stream.Stream[bool] {
	return c.project(key, func(s State[V]) bool { return s.Error })
}

func (c *cache[V]) Reload(key string) {
	c.log.Info("reload requested", KeyFields(c.ns, key))
	c.dispatch(key, ReasonReload)
}

func (c *cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// upstream is the per-connection pipeline behind a shared stream: watch the
// key's state, issue a load if the first state seen asks for one, and
// project to the value. Later states of the same connection never trigger
// a load.
func (c *cache[V]) upstream(key string) stream.Stream[V] {
	return stream.Func[V](func(emit func(V)) stream.Subscription {
		first := true
		return c.src.State(key).Subscribe(func(st State[V]) {
			if first {
				first = false
				if reason, ok := c.loadReason(st); ok {
					c.dispatch(key, reason)
				}
			}
			emit(st.Value)
		})
	})
}

func (c *cache[V]) loadReason(st State[V]) (string, bool) {
	switch {
	case !st.AttemptedLoad():
		return ReasonUnattempted, true
	case st.Error && !st.Loading && c.retryErrors:
		return ReasonRetry, true
	}
	return "", false
}

func (c *cache[V]) project(key string, field func(State[V]) bool) stream.Stream[bool] {
	return stream.Distinct(stream.Map(c.src.State(key), field))
}

func (c *cache[V]) dispatch(key, reason string) {
	f := KeyFields(c.ns, key)
	f["reason"] = reason
	c.log.Debug("dispatching load", f)
	c.hooks.LoadDispatched(key, reason)
	c.src.Dispatch(LoadCommand{Key: key, Reason: reason})
}

func (c *cache[V]) connected(e *entry[V]) {
	c.mu.Lock()
	e.active = true
	if c.idle != nil && c.streams[e.key] == e {
		c.idle.Remove(e.key)
	}
	c.mu.Unlock()

	c.log.Debug("shared stream connected", KeyFields(c.ns, e.key))
	c.hooks.StreamConnected(e.key)
}

func (c *cache[V]) released(e *entry[V]) {
	c.mu.Lock()
	e.active = false
	var evicted []string
	if c.idle != nil && c.streams[e.key] == e {
		c.idle.Add(e.key, struct{}{})
		evicted = c.takeEvicted()
	}
	c.mu.Unlock()

	c.log.Debug("shared stream released", KeyFields(c.ns, e.key))
	c.hooks.StreamReleased(e.key)
	c.notifyEvicted(evicted)
}

// onIdleEvict runs synchronously inside idle.Add/Remove, i.e. with c.mu held.
func (c *cache[V]) onIdleEvict(key string, _ struct{}) {
	e, ok := c.streams[key]
	if !ok || e.active || e.pinned > 0 {
		return
	}
	delete(c.streams, key)
	c.evicted = append(c.evicted, key)
}

func (c *cache[V]) takeEvicted() []string {
	ev := c.evicted
	c.evicted = nil
	return ev
}

func (c *cache[V]) notifyEvicted(keys []string) {
	for _, k := range keys {
		c.log.Debug("idle shared stream evicted", KeyFields(c.ns, k))
		c.hooks.StreamEvicted(k)
	}
}
