package demo

import (
	"context"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/replaycache"
	"github.com/unkn0wn-root/replaycache/codec"
	"github.com/unkn0wn-root/replaycache/genstore"
	"github.com/unkn0wn-root/replaycache/internal/config"
	logruslog "github.com/unkn0wn-root/replaycache/log/logrus"
	sloglog "github.com/unkn0wn-root/replaycache/log/slog"
	zaplog "github.com/unkn0wn-root/replaycache/log/zap"
	"github.com/unkn0wn-root/replaycache/provider"
	bigcacheprov "github.com/unkn0wn-root/replaycache/provider/bigcache"
	memcacheprov "github.com/unkn0wn-root/replaycache/provider/memcache"
	redisprov "github.com/unkn0wn-root/replaycache/provider/redis"
	"github.com/unkn0wn-root/replaycache/provider/ristretto"
	"github.com/unkn0wn-root/replaycache/sloghooks"
)

func newLogger(cfg config.LogConfig) (replaycache.Logger, func(), error) {
	switch cfg.Backend {
	case "", "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		lvl, err := logrus.ParseLevel(orDefault(cfg.Level, "info"))
		if err != nil {
			return nil, nil, err
		}
		l.SetLevel(lvl)
		return logruslog.New(l), func() {}, nil

	case "zap":
		lvl, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
		if err != nil {
			return nil, nil, err
		}
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		l, err := zc.Build()
		if err != nil {
			return nil, nil, err
		}
		return zaplog.New(l), func() { _ = l.Sync() }, nil

	case "slog":
		lvl, err := slogLevel(cfg.Level)
		if err != nil {
			return nil, nil, err
		}
		h := stdslog.NewTextHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl})
		return sloglog.New(stdslog.New(h)), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
}

func slogLevel(s string) (stdslog.Level, error) {
	var lvl stdslog.Level
	err := lvl.UnmarshalText([]byte(orDefault(s, "info")))
	return lvl, err
}

// newHooks returns the hook sink for cfg.Hooks. stats always counts; "slog"
// also writes every event to w.
func newHooks(cfg config.Config, stats *Stats, w io.Writer) (replaycache.Hooks, error) {
	switch cfg.Hooks {
	case "", "stats":
		return stats, nil
	case "slog":
		lvl, err := slogLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		l := stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl}))
		return tee{stats, sloghooks.New(l, sloghooks.Options{})}, nil
	}
	return nil, fmt.Errorf("unknown hooks sink %q", cfg.Hooks)
}

// tee fans every event out to each sink in order.
type tee []replaycache.Hooks

func (t tee) StreamCreated(k string) {
	for _, h := range t {
		h.StreamCreated(k)
	}
}

func (t tee) StreamConnected(k string) {
	for _, h := range t {
		h.StreamConnected(k)
	}
}

func (t tee) StreamReleased(k string) {
	for _, h := range t {
		h.StreamReleased(k)
	}
}

func (t tee) StreamEvicted(k string) {
	for _, h := range t {
		h.StreamEvicted(k)
	}
}

func (t tee) LoadDispatched(k, reason string) {
	for _, h := range t {
		h.LoadDispatched(k, reason)
	}
}

func (t tee) StaleCompletion(k string) {
	for _, h := range t {
		h.StaleCompletion(k)
	}
}

func (t tee) FetchFailed(k string, err error) {
	for _, h := range t {
		h.FetchFailed(k, err)
	}
}

func (t tee) ProviderError(op, k string, err error) {
	for _, h := range t {
		h.ProviderError(op, k, err)
	}
}

// l2 is the optional byte store, its codec and the generation store.
type l2 struct {
	provider provider.Provider
	codec    codec.Codec[Product]
	gens     genstore.GenStore
	cleanup  func()
}

func newL2(ctx context.Context, cfg config.Config, log replaycache.Logger) (*l2, error) {
	env := &l2{cleanup: func() {}}

	var rdb goredis.UniversalClient
	needRedis := cfg.L2.Provider == "redis" || cfg.L2.GenStore == "redis"
	if needRedis {
		addr := cfg.L2.RedisAddr
		if addr == "" {
			// no server given: run an in-process one
			mr, err := miniredis.Run()
			if err != nil {
				return nil, err
			}
			addr = mr.Addr()
			env.cleanup = mr.Close
			log.Info("started embedded redis", replaycache.Fields{"addr": addr})
		}
		rdb = goredis.NewClient(&goredis.Options{Addr: addr})
	}

	if cfg.L2.GenStore == "redis" {
		// the store closes the gen store, and with it the client
		env.gens = genstore.NewRedis(rdb, cfg.Namespace, 0)
	}

	var err error
	switch cfg.L2.Provider {
	case "", "none":
		return env, nil
	case "ristretto":
		rc := ristretto.DefaultConfig(cfg.L2.MaxBytes)
		rc.SyncWrites = true
		env.provider, err = ristretto.New(rc)
	case "bigcache":
		env.provider, err = bigcacheprov.New(ctx, bigcacheprov.Config{
			LifeWindow:         cfg.TTL(),
			HardMaxCacheSizeMB: int(cfg.L2.MaxBytes >> 20),
		})
	case "redis":
		env.provider, err = redisprov.New(redisprov.Config{
			Client:      rdb,
			CloseClient: cfg.L2.GenStore != "redis",
		})
	case "memcache":
		env.provider, err = memcacheprov.New(memcacheprov.Config{Servers: cfg.L2.Memcache})
	default:
		err = fmt.Errorf("unknown l2 provider %q", cfg.L2.Provider)
	}
	if err != nil {
		env.cleanup()
		return nil, err
	}

	c, ok := codec.ByName[Product](cfg.L2.Codec)
	if !ok {
		env.cleanup()
		return nil, fmt.Errorf("unknown codec %q", cfg.L2.Codec)
	}
	env.codec = codec.Limit[Product]{Inner: c, MaxDecode: 1 << 20}
	return env, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
