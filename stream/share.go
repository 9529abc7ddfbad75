package stream

import "sync"

// ShareOption configures Share.
type ShareOption func(*shareConfig)

type shareConfig struct {
	onConnect    func()
	onDisconnect func()
}

// OnConnect registers fn to run after the upstream subscription is made.
func OnConnect(fn func()) ShareOption {
	return func(c *shareConfig) { c.onConnect = fn }
}

// OnDisconnect registers fn to run after the upstream subscription is
// released because the last observer left.
func OnDisconnect(fn func()) ShareOption {
	return func(c *shareConfig) { c.onDisconnect = fn }
}

// Shared multicasts one upstream subscription to any number of observers,
// replaying the latest value to late joiners. The upstream is subscribed
// when the first observer arrives and released when the last one leaves;
// the replay buffer is dropped with it.
type Shared[T any] struct {
	mu      sync.Mutex
	source  Stream[T]
	cfg     shareConfig
	subject *Subject[T]
	conn    Subscription
	refs    int
	epoch   uint64
}

var _ Stream[int] = (*Shared[int])(nil)

// Share wraps source with multicast, replay-1 and refcount semantics.
func Share[T any](source Stream[T], opts ...ShareOption) *Shared[T] {
	s := &Shared[T]{source: source}
	for _, o := range opts {
		o(&s.cfg)
	}
	return s
}

// Subscribe attaches fn, connecting upstream if fn is the first observer.
func (s *Shared[T]) Subscribe(fn func(T)) Subscription {
	s.mu.Lock()
	if s.subject == nil {
		s.subject = NewSubject[T]()
	}
	subj := s.subject
	s.refs++
	connect := s.refs == 1
	if connect {
		s.epoch++
	}
	epoch := s.epoch
	s.mu.Unlock()

	inner := subj.Subscribe(fn)
	if connect {
		s.connect(subj, epoch)
	}
	return OnUnsubscribe(func() {
		inner.Unsubscribe()
		s.release()
	})
}

// Refs returns the number of attached observers.
func (s *Shared[T]) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Shared[T]) connect(subj *Subject[T], epoch uint64) {
	conn := s.source.Subscribe(subj.Emit)

	s.mu.Lock()
	if s.epoch == epoch && s.conn == nil && s.refs > 0 {
		s.conn, conn = conn, nil
	}
	s.mu.Unlock()

	if conn != nil {
		// every observer left while we were connecting
		conn.Unsubscribe()
		return
	}
	if s.cfg.onConnect != nil {
		s.cfg.onConnect()
	}
}

func (s *Shared[T]) release() {
	s.mu.Lock()
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.subject = nil
	s.epoch++
	s.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Unsubscribe()
	if s.cfg.onDisconnect != nil {
		s.cfg.onDisconnect()
	}
}
