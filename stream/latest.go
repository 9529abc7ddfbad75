package stream

import "sync"

// Latest turns a push stream into a value that can be polled on demand.
// It holds at most one subscription; values pushed by a subscription that
// has since been replaced or released are ignored.
type Latest[T any] struct {
	mu       sync.Mutex
	sub      Subscription
	token    uint64
	val      T
	has      bool
	onChange func()
}

// NewLatest returns an idle projector. onChange, if non-nil, runs after
// every accepted value; it must not call back into the projector's owner
// synchronously while that owner holds its own locks.
func NewLatest[T any](onChange func()) *Latest[T] {
	return &Latest[T]{onChange: onChange}
}

// Track releases the current subscription, without waiting for a final
// value, and subscribes to src.
func (l *Latest[T]) Track(src Stream[T]) {
	old, token := l.reset()
	if old != nil {
		old.Unsubscribe()
	}

	sub := src.Subscribe(func(v T) {
		l.mu.Lock()
		if l.token != token {
			l.mu.Unlock()
			return
		}
		l.val, l.has = v, true
		l.mu.Unlock()
		if l.onChange != nil {
			l.onChange()
		}
	})

	l.mu.Lock()
	if l.token == token {
		l.sub, sub = sub, nil
	}
	l.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Value returns the latest accepted value; ok is false while nothing has
// arrived on the current subscription.
func (l *Latest[T]) Value() (v T, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, l.has
}

// Release drops the current subscription. Safe to call repeatedly.
func (l *Latest[T]) Release() {
	old, _ := l.reset()
	if old != nil {
		old.Unsubscribe()
	}
}

func (l *Latest[T]) reset() (Subscription, uint64) {
	var zero T
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.sub
	l.sub = nil
	l.token++
	l.val, l.has = zero, false
	return old, l.token
}
