package stream

import (
	"sync"
	"sync/atomic"
)

type observer[T any] struct {
	fn     func(T)
	closed atomic.Bool
}

type delivery[T any] struct {
	to  []*observer[T]
	val T
}

// Subject is a multicast broadcaster that replays its most recent value to
// new observers. It is safe for concurrent use.
type Subject[T any] struct {
	mu       sync.Mutex
	obs      []*observer[T]
	last     T
	hasLast  bool
	queue    []delivery[T]
	draining bool
}

var _ Stream[int] = (*Subject[int])(nil)

// NewSubject returns a Subject with an empty replay buffer.
func NewSubject[T any]() *Subject[T] { return &Subject[T]{} }

// NewBehavior returns a Subject whose replay buffer starts at initial.
func NewBehavior[T any](initial T) *Subject[T] {
	return &Subject[T]{last: initial, hasLast: true}
}

// Emit buffers v and schedules its delivery to the current observers.
func (s *Subject[T]) Emit(v T) {
	s.mu.Lock()
	s.last, s.hasLast = v, true
	if len(s.obs) > 0 {
		to := make([]*observer[T], len(s.obs))
		copy(to, s.obs)
		s.queue = append(s.queue, delivery[T]{to: to, val: v})
	}
	s.mu.Unlock()
	s.flush()
}

// Update computes the next value from the buffered one and emits it when fn
// reports a change. fn runs under the subject's lock: it must be fast and
// must not call back into the subject. Concurrent Updates are applied and
// delivered in the same order.
func (s *Subject[T]) Update(fn func(cur T, ok bool) (next T, changed bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.last, s.hasLast)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.last, s.hasLast = next, true
	if len(s.obs) > 0 {
		to := make([]*observer[T], len(s.obs))
		copy(to, s.obs)
		s.queue = append(s.queue, delivery[T]{to: to, val: next})
	}
	s.mu.Unlock()
	s.flush()
	return true
}

// Subscribe registers fn. If a value is buffered it is replayed to fn first.
func (s *Subject[T]) Subscribe(fn func(T)) Subscription {
	o := &observer[T]{fn: fn}
	s.mu.Lock()
	s.obs = append(s.obs, o)
	if s.hasLast {
		s.queue = append(s.queue, delivery[T]{to: []*observer[T]{o}, val: s.last})
	}
	s.mu.Unlock()
	s.flush()

	return OnUnsubscribe(func() {
		o.closed.Store(true)
		s.mu.Lock()
		for i, cur := range s.obs {
			if cur == o {
				s.obs = append(s.obs[:i], s.obs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	})
}

// Value returns the buffered value, if any.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Reset empties the replay buffer. Queued deliveries are unaffected.
func (s *Subject[T]) Reset() {
	var zero T
	s.mu.Lock()
	s.last, s.hasLast = zero, false
	s.mu.Unlock()
}

// Len returns the number of registered observers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obs)
}

func (s *Subject[T]) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	done := false
	defer func() {
		if done {
			return
		}
		// an observer panicked; leave the subject usable
		s.mu.Lock()
		s.draining = false
		s.queue = nil
		s.mu.Unlock()
	}()

	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue[0] = delivery[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()
		for _, o := range d.to {
			if !o.closed.Load() {
				o.fn(d.val)
			}
		}
		s.mu.Lock()
	}
	s.draining = false
	done = true
	s.mu.Unlock()
}
