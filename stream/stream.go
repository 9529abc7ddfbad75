// Package stream provides the push-based primitives the cache is built on:
// a replay-1 broadcaster (Subject), a refcounted multicast wrapper (Share),
// a couple of operators and a poll-on-demand projector (Latest).
//
// # Delivery model
//
// Every Subject owns a FIFO delivery queue drained by whichever goroutine
// finds it idle. A value emitted from inside an observer callback is queued
// and delivered after that callback returns, so observers never re-enter
// and always see values in emission order. A late subscriber gets the
// buffered value queued behind any delivery already scheduled; when the
// subject is idle that happens before Subscribe returns.
package stream

import "sync"

// Stream is a push-based source of values.
type Stream[T any] interface {
	// Subscribe registers fn and returns a handle that stops delivery.
	Subscribe(fn func(T)) Subscription
}

// Subscription releases an observer. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Func adapts a connect function to Stream. Each Subscribe call runs
// connect with a fresh emit function.
type Func[T any] func(emit func(T)) Subscription

func (f Func[T]) Subscribe(fn func(T)) Subscription { return f(fn) }

type subscriptionFunc struct {
	once sync.Once
	fn   func()
}

func (s *subscriptionFunc) Unsubscribe() { s.once.Do(s.fn) }

// OnUnsubscribe returns a Subscription that runs fn once.
func OnUnsubscribe(fn func()) Subscription {
	return &subscriptionFunc{fn: fn}
}

// Map projects every value of src through fn.
func Map[T, U any](src Stream[T], fn func(T) U) Stream[U] {
	return Func[U](func(emit func(U)) Subscription {
		return src.Subscribe(func(v T) { emit(fn(v)) })
	})
}

// Distinct drops values equal to the previously delivered one.
func Distinct[T comparable](src Stream[T]) Stream[T] {
	return Func[T](func(emit func(T)) Subscription {
		var (
			last T
			seen bool
		)
		return src.Subscribe(func(v T) {
			if seen && v == last {
				return
			}
			last, seen = v, true
			emit(v)
		})
	})
}
