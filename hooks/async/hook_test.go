package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/replaycache"
)

type recorder struct {
	replaycache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) LoadDispatched(k, reason string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, k+":"+reason)
	r.mu.Unlock()
}

func TestForwardsAndDrainsOnClose(t *testing.T) {
	r := &recorder{}
	h := New(r, 1, 16)
	h.LoadDispatched("a", replaycache.ReasonUnattempted)
	h.LoadDispatched("b", replaycache.ReasonReload)
	h.Close()

	if len(r.events) != 2 || r.events[0] != "a:unattempted" || r.events[1] != "b:reload" {
		t.Fatalf("events: %v", r.events)
	}
	h.LoadDispatched("late", replaycache.ReasonRetry)
	if h.Dropped() != 1 {
		t.Fatalf("event after Close must be dropped, dropped=%d", h.Dropped())
	}
	h.Close()
}

func TestDropsWhenQueueFull(t *testing.T) {
	r := &recorder{block: make(chan struct{})}
	h := New(r, 1, 1)
	// worker takes the first and blocks; the second fills the queue
	for i := 0; i < 10; i++ {
		h.LoadDispatched("k", replaycache.ReasonUnattempted)
	}
	close(r.block)
	h.Close()

	got := uint64(len(r.events))
	if got+h.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", got, h.Dropped())
	}
	if h.Dropped() == 0 {
		t.Fatal("expected drops with a full queue")
	}
}
