package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Minute, Shards: 16, MaxEntriesInWindow: 1000, MaxEntrySize: 256})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, hit, err := p.Get(ctx, "missing"); hit || err != nil {
		t.Fatalf("miss must be (false, nil), got hit=%v err=%v", hit, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 0, 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, hit, err := p.Get(ctx, "k")
	if err != nil || !hit || !bytes.Equal(b, []byte("v")) {
		t.Fatalf("Get: %q hit=%v err=%v", b, hit, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
}
