package stream

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) push(v T) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
}

func (r *recorder[T]) values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}

// countingSource records how many subscriptions are live.
type countingSource[T any] struct {
	subj  *Subject[T]
	mu    sync.Mutex
	live  int
	total int
}

func newCountingSource[T any](initial ...T) *countingSource[T] {
	s := &countingSource[T]{subj: NewSubject[T]()}
	if len(initial) > 0 {
		s.subj = NewBehavior(initial[0])
	}
	return s
}

func (c *countingSource[T]) Subscribe(fn func(T)) Subscription {
	c.mu.Lock()
	c.live++
	c.total++
	c.mu.Unlock()
	inner := c.subj.Subscribe(fn)
	return OnUnsubscribe(func() {
		inner.Unsubscribe()
		c.mu.Lock()
		c.live--
		c.mu.Unlock()
	})
}

func (c *countingSource[T]) counts() (live, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live, c.total
}

func TestSubjectReplaysLatestToLateSubscriber(t *testing.T) {
	s := NewSubject[int]()
	early := &recorder[int]{}
	s.Subscribe(early.push)

	s.Emit(1)
	s.Emit(2)

	late := &recorder[int]{}
	s.Subscribe(late.push)

	require.Equal(t, []int{1, 2}, early.values())
	require.Equal(t, []int{2}, late.values())
}

func TestSubjectWithoutValueReplaysNothing(t *testing.T) {
	s := NewSubject[string]()
	r := &recorder[string]{}
	s.Subscribe(r.push)
	require.Empty(t, r.values())

	_, ok := s.Value()
	require.False(t, ok)
}

func TestBehaviorReplaysInitial(t *testing.T) {
	s := NewBehavior("init")
	r := &recorder[string]{}
	s.Subscribe(r.push)
	require.Equal(t, []string{"init"}, r.values())
}

func TestSubjectUnsubscribeStopsDelivery(t *testing.T) {
	s := NewSubject[int]()
	r := &recorder[int]{}
	sub := s.Subscribe(r.push)
	s.Emit(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Emit(2)

	require.Equal(t, []int{1}, r.values())
	require.Equal(t, 0, s.Len())
}

func TestSubjectReentrantEmitKeepsOrder(t *testing.T) {
	s := NewSubject[int]()
	a := &recorder[int]{}
	b := &recorder[int]{}
	s.Subscribe(func(v int) {
		a.push(v)
		if v == 1 {
			s.Emit(2)
		}
	})
	s.Subscribe(b.push)

	s.Emit(1)

	require.Equal(t, []int{1, 2}, a.values())
	require.Equal(t, []int{1, 2}, b.values())
}

func TestSubjectSubscribeFromCallbackGetsLatest(t *testing.T) {
	s := NewSubject[int]()
	late := &recorder[int]{}
	var once sync.Once
	s.Subscribe(func(v int) {
		once.Do(func() { s.Subscribe(late.push) })
	})
	s.Emit(1)
	s.Emit(2)

	require.Equal(t, []int{1, 2}, late.values())
}

func TestSubjectSurvivesPanickingObserver(t *testing.T) {
	s := NewSubject[int]()
	sub := s.Subscribe(func(int) { panic("boom") })
	require.Panics(t, func() { s.Emit(1) })
	sub.Unsubscribe()

	r := &recorder[int]{}
	s.Subscribe(r.push)
	s.Emit(2)
	require.Equal(t, []int{1, 2}, r.values())
}

func TestSubjectConcurrentEmitSerializesDelivery(t *testing.T) {
	s := NewSubject[int]()
	var (
		inFlight  atomic.Int32
		delivered atomic.Int32
		overlap   atomic.Bool
	)
	s.Subscribe(func(int) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		delivered.Add(1)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Emit(i)
			}
		}()
	}
	wg.Wait()

	require.False(t, overlap.Load())
	require.EqualValues(t, 1600, delivered.Load())
}

func TestSubjectUpdateEmitsOnlyOnChange(t *testing.T) {
	s := NewBehavior(1)
	var rec recorder[int]
	s.Subscribe(rec.push)

	changed := s.Update(func(cur int, ok bool) (int, bool) {
		require.True(t, ok)
		return cur, false
	})
	require.False(t, changed)

	changed = s.Update(func(cur int, _ bool) (int, bool) { return cur + 1, true })
	require.True(t, changed)
	require.Equal(t, []int{1, 2}, rec.values())

	v, _ := s.Value()
	require.Equal(t, 2, v)
}

func TestSubjectConcurrentUpdatesAreAtomic(t *testing.T) {
	s := NewBehavior(0)
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Update(func(cur int, _ bool) (int, bool) { return cur + 1, true })
		}()
	}
	wg.Wait()
	v, _ := s.Value()
	require.Equal(t, n, v)
}

func TestShareConnectsOnceAndReplays(t *testing.T) {
	src := newCountingSource[int]()
	connects, disconnects := 0, 0
	sh := Share[int](src, OnConnect(func() { connects++ }), OnDisconnect(func() { disconnects++ }))

	a := &recorder[int]{}
	b := &recorder[int]{}
	subA := sh.Subscribe(a.push)
	subB := sh.Subscribe(b.push)

	live, total := src.counts()
	require.Equal(t, 1, live)
	require.Equal(t, 1, total)
	require.Equal(t, 2, sh.Refs())

	src.subj.Emit(7)
	c := &recorder[int]{}
	subC := sh.Subscribe(c.push)

	require.Equal(t, []int{7}, a.values())
	require.Equal(t, []int{7}, b.values())
	require.Equal(t, []int{7}, c.values())

	subA.Unsubscribe()
	subB.Unsubscribe()
	live, _ = src.counts()
	require.Equal(t, 1, live)

	subC.Unsubscribe()
	subC.Unsubscribe()
	live, _ = src.counts()
	require.Equal(t, 0, live)
	require.Equal(t, 0, sh.Refs())
	require.Equal(t, 1, connects)
	require.Equal(t, 1, disconnects)
}

func TestShareResubscribeReconnectsWithFreshBuffer(t *testing.T) {
	src := newCountingSource[int]()
	sh := Share[int](src)

	first := &recorder[int]{}
	sub := sh.Subscribe(first.push)
	src.subj.Emit(1)
	sub.Unsubscribe()

	// upstream moves on while nobody listens; the stale 1 must not be replayed
	src.subj.Reset()
	second := &recorder[int]{}
	sh.Subscribe(second.push)

	_, total := src.counts()
	require.Equal(t, 2, total)
	require.Empty(t, second.values())

	src.subj.Emit(2)
	require.Equal(t, []int{2}, second.values())
}

func TestShareSynchronousSourceDeliversOnSubscribe(t *testing.T) {
	src := newCountingSource(5)
	sh := Share[int](src)

	got := &recorder[int]{}
	sub := sh.Subscribe(got.push)
	require.Equal(t, []int{5}, got.values())
	sub.Unsubscribe()

	live, _ := src.counts()
	require.Equal(t, 0, live)
	require.Equal(t, []int{5}, got.values())
}

func TestMapAndDistinct(t *testing.T) {
	s := NewSubject[int]()
	r := &recorder[bool]{}
	Distinct(Map[int, bool](s, func(v int) bool { return v%2 == 0 })).Subscribe(r.push)

	for _, v := range []int{1, 3, 2, 4, 5} {
		s.Emit(v)
	}
	require.Equal(t, []bool{false, true, false}, r.values())
}

func TestLatestTracksAndSwitches(t *testing.T) {
	changes := 0
	l := NewLatest[string](func() { changes++ })

	_, ok := l.Value()
	require.False(t, ok)

	a := NewSubject[string]()
	l.Track(a)
	_, ok = l.Value()
	require.False(t, ok)

	a.Emit("a1")
	v, ok := l.Value()
	require.True(t, ok)
	require.Equal(t, "a1", v)

	b := NewBehavior("b0")
	l.Track(b)
	v, ok = l.Value()
	require.True(t, ok)
	require.Equal(t, "b0", v)
	require.Equal(t, 0, a.Len())

	a.Emit("a2")
	v, _ = l.Value()
	require.Equal(t, "b0", v)
	require.Equal(t, 2, changes)

	l.Release()
	l.Release()
	_, ok = l.Value()
	require.False(t, ok)
	require.Equal(t, 0, b.Len())

	b.Emit("b1")
	_, ok = l.Value()
	require.False(t, ok)
}
