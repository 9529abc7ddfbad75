package genstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalMissingIsZeroAndBumpIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, _ := s.Current(ctx, "a"); g != 0 {
		t.Fatalf("missing key: got %d want 0", g)
	}
	for want := uint64(1); want <= 3; want++ {
		g, err := s.Bump(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if g != want {
			t.Fatalf("bump: got %d want %d", g, want)
		}
	}
	if g, _ := s.Current(ctx, "a"); g != 3 {
		t.Fatalf("current: got %d want 3", g)
	}
	if g, _ := s.Current(ctx, "b"); g != 0 {
		t.Fatalf("other key: got %d want 0", g)
	}
}

func TestLocalConcurrentBumpsAreAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Bump(ctx, "k")
		}()
	}
	wg.Wait()
	if g, _ := s.Current(ctx, "k"); g != n {
		t.Fatalf("got %d want %d", g, n)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(25 * time.Millisecond)

	if g, _ := s.Current(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Current(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh key must survive, got %d", g)
	}
	if s.Len() != 1 {
		t.Fatalf("len: got %d want 1", s.Len())
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
