// Package sloghooks reports replaycache.Hooks events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LifecycleEvery uint64 // stream created/connected/released/evicted
	DispatchEvery  uint64
	StaleEvery     uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lifecycleCtr atomic.Uint64
	dispatchCtr  atomic.Uint64
	staleCtr     atomic.Uint64
}

var _ replaycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Redact(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) lifecycle(event, key string) {
	if h.l == nil || !sample(h.opts.LifecycleEvery, &h.lifecycleCtr) {
		return
	}
	h.l.Debug("replaycache."+event, "key", h.redact(key))
}

func (h *Hooks) StreamCreated(k string)   { h.lifecycle("stream_created", k) }
func (h *Hooks) StreamConnected(k string) { h.lifecycle("stream_connected", k) }
func (h *Hooks) StreamReleased(k string)  { h.lifecycle("stream_released", k) }
func (h *Hooks) StreamEvicted(k string)   { h.lifecycle("stream_evicted", k) }

func (h *Hooks) LoadDispatched(k, reason string) {
	if h.l == nil || !sample(h.opts.DispatchEvery, &h.dispatchCtr) {
		return
	}
	h.l.Info("replaycache.load_dispatched",
		"key", h.redact(k),
		"reason", reason)
}

func (h *Hooks) StaleCompletion(k string) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Warn("replaycache.stale_completion", "key", h.redact(k))
}

func (h *Hooks) FetchFailed(k string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("replaycache.fetch_failed",
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) ProviderError(op, k string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("replaycache.provider_error",
		"op", op,
		"key", h.redact(k),
		"err", err)
}
