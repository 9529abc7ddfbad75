// Package replaycache exposes keyed, asynchronously loaded values as shared
// push streams.
//
// A Cache sits in front of an external state source (a store that tracks
// load state per key and accepts load commands). Every key gets one shared
// stream. The first observer connects it to the source; if the source has
// not attempted a load for the key yet, exactly one LoadCommand is issued.
// Further observers share that connection and receive the most recent value
// immediately. When the last observer leaves the connection is released; the
// next observer reconnects and re-runs the "load if not attempted" check, so
// a key that failed can be retried simply by observing it again.
//
// Components:
//   - Source[V]: external store. State(key) pushes State[V]; Dispatch starts a load.
//   - Cache[V]: Get / IsLoading / IsSuccess / HasError / Reload.
//   - stream: Subject, Share and Latest primitives.
//   - equal: shallow and deep parameter equality.
//   - memo: per-call-site memoized derivation for render loops.
//   - store: a reference Source with fetch coalescing, generations and an
//     optional L2 byte provider.
//
// Usage:
//
//	c, _ := replaycache.New[Product](replaycache.Options[Product]{Source: st})
//	sub := c.Get("SKU1").Subscribe(func(p Product) { render(p) })
//	defer sub.Unsubscribe()
package replaycache
