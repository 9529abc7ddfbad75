package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/codec"
	"github.com/unkn0wn-root/replaycache/genstore"
	redisprov "github.com/unkn0wn-root/replaycache/provider/redis"
)

// replicaPair builds two stores over one redis so the second can only
// see the first's values through the L2 codec.
func replicaPair[V any](t *testing.T, c codec.Codec[V], fetch Fetcher[V]) (*Store[V], *Store[V]) {
	t.Helper()
	mr := miniredis.RunT(t)
	mk := func() *Store[V] {
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		p, err := redisprov.New(redisprov.Config{Client: rdb})
		require.NoError(t, err)
		s, err := New(Options[V]{
			Fetch:     fetch,
			Namespace: "codec",
			Provider:  p,
			Codec:     c,
			GenStore:  genstore.NewRedis(rdb, "codec", 0),
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = s.Close(ctx)
		})
		return s
	}
	return mk(), mk()
}

func loaded[V any](t *testing.T, s *Store[V], key string) V {
	t.Helper()
	s.Dispatch(replaycache.LoadCommand{Key: key, Reason: replaycache.ReasonUnattempted})
	require.Eventually(t, func() bool { return s.Snapshot(key).Success }, time.Second, time.Millisecond)
	return s.Snapshot(key).Value
}

func TestProtobufValuesCrossL2(t *testing.T) {
	var calls atomic.Int32
	pb := codec.NewProtobuf(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
	a, b := replicaPair[*wrapperspb.StringValue](t, codec.Limit[*wrapperspb.StringValue]{Inner: pb, MaxDecode: 1 << 10},
		func(_ context.Context, key string) (*wrapperspb.StringValue, error) {
			calls.Add(1)
			return wrapperspb.String("name:" + key), nil
		})

	require.Equal(t, "name:SKU1", loaded(t, a, "SKU1").GetValue())

	got := loaded(t, b, "SKU1")
	require.True(t, proto.Equal(wrapperspb.String("name:SKU1"), got))
	require.EqualValues(t, 1, calls.Load(), "second replica must decode the L2 entry")
}

func TestStringValuesCrossL2(t *testing.T) {
	var calls atomic.Int32
	a, b := replicaPair[string](t, codec.String{}, func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return "v-" + key, nil
	})

	require.Equal(t, "v-k", loaded(t, a, "k"))
	require.Equal(t, "v-k", loaded(t, b, "k"))
	require.EqualValues(t, 1, calls.Load())
}
