// Package zap adapts a zap logger to replaycache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/replaycache"
)

var _ replaycache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New returns a Logger; nil => zap.NewNop().
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("replaycache")}
}

func (z Logger) Debug(msg string, f replaycache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f replaycache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f replaycache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f replaycache.Fields) { z.L.Error(msg, zf(f)...) }

// zf sorts keys so encoded lines are stable across runs.
func zf(f replaycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
