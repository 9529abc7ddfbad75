// Package asynchook moves replaycache.Hooks calls off the delivery path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{LifecycleEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	c, _ := replaycache.New[Product](replaycache.Options[Product]{
//	    Source: src,
//	    Hooks:  hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/replaycache"
)

// Hooks forwards events to inner on worker goroutines. Events are dropped
// when the queue is full or after Close.
type Hooks struct {
	inner   replaycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against sends on a closed q
	closed  bool
	dropped atomic.Uint64
}

var _ replaycache.Hooks = (*Hooks)(nil)

func New(inner replaycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StreamCreated(k string)   { h.try(func() { h.inner.StreamCreated(k) }) }
func (h *Hooks) StreamConnected(k string) { h.try(func() { h.inner.StreamConnected(k) }) }
func (h *Hooks) StreamReleased(k string)  { h.try(func() { h.inner.StreamReleased(k) }) }
func (h *Hooks) StreamEvicted(k string)   { h.try(func() { h.inner.StreamEvicted(k) }) }
func (h *Hooks) StaleCompletion(k string) { h.try(func() { h.inner.StaleCompletion(k) }) }
func (h *Hooks) LoadDispatched(k, r string) {
	h.try(func() { h.inner.LoadDispatched(k, r) })
}
func (h *Hooks) FetchFailed(k string, err error) {
	h.try(func() { h.inner.FetchFailed(k, err) })
}
func (h *Hooks) ProviderError(op, k string, err error) {
	h.try(func() { h.inner.ProviderError(op, k, err) })
}
