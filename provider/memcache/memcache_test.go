package memcache

import (
	"strings"
	"testing"
	"time"
)

func TestSafeKeyPassesValidKeysThrough(t *testing.T) {
	k := "replaycache:prod:entry:SKU1"
	if got := safeKey(k); got != k {
		t.Fatalf("got %q want %q", got, k)
	}
}

func TestSafeKeyHashesInvalidKeys(t *testing.T) {
	cases := []string{
		"with space",
		"tab\there",
		"ünïcode",
		strings.Repeat("k", maxKeyLen+1),
	}
	seen := map[string]bool{}
	for _, k := range cases {
		got := safeKey(k)
		if len(got) > maxKeyLen {
			t.Fatalf("%q: hashed key too long (%d)", k, len(got))
		}
		if strings.ContainsFunc(got, badKeyRune) {
			t.Fatalf("%q: hashed key still invalid: %q", k, got)
		}
		if got != safeKey(k) {
			t.Fatalf("%q: not deterministic", k)
		}
		if seen[got] {
			t.Fatalf("%q: collided", k)
		}
		seen[got] = true
	}
}

func TestExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		ttl  time.Duration
		want int32
	}{
		{0, 0},
		{-time.Second, 0},
		{500 * time.Millisecond, 1},
		{10 * time.Minute, 600},
		{maxRelativeTTL, int32(maxRelativeTTL / time.Second)},
		{maxRelativeTTL + time.Hour, int32(now.Add(maxRelativeTTL + time.Hour).Unix())},
	}
	for _, tc := range cases {
		if got := expiration(tc.ttl, now); got != tc.want {
			t.Fatalf("ttl=%v: got %d want %d", tc.ttl, got, tc.want)
		}
	}
}

func TestNewRequiresServers(t *testing.T) {
	if _, err := New(Config{}); err != ErrNoServers {
		t.Fatalf("got %v want ErrNoServers", err)
	}
}
