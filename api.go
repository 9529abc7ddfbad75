package replaycache

import (
	"github.com/unkn0wn-root/replaycache/stream"
)

// Load command reasons.
const (
	ReasonUnattempted = "unattempted" // first observation found no load attempt
	ReasonRetry       = "retry"       // a new connection found a failed load
	ReasonReload      = "reload"      // explicit Reload
)

// State is the per-key load state owned by a Source.
type State[V any] struct {
	Loading bool
	Success bool
	Error   bool
	Value   V
	Cause   error // set by the source when Error is true
}

// AttemptedLoad reports whether a load was started or has finished for the key.
func (s State[V]) AttemptedLoad() bool {
	return s.Loading || s.Success || s.Error
}

// LoadCommand asks a Source to start loading Key.
type LoadCommand struct {
	Key    string
	Reason string
}

// Source is the external store the cache reads from and sends commands to.
// Implementations must be safe for concurrent use.
type Source[V any] interface {
	// State returns a stream of the key's load state. Subscribing must
	// deliver the current state, then every change.
	State(key string) stream.Stream[State[V]]
	// Dispatch requests a load. Fire-and-forget.
	Dispatch(cmd LoadCommand)
}

// Cache hands out one shared, replaying stream per key and makes sure a key
// is loaded at most once per connection of that stream.
type Cache[V any] interface {
	// Get returns the shared value stream for key.
	Get(key string) stream.Stream[V]

	// Load state projections. They never trigger a load.
	IsLoading(key string) stream.Stream[bool]
	IsSuccess(key string) stream.Stream[bool]
	HasError(key string) stream.Stream[bool]

	// Reload unconditionally issues a load command for key.
	Reload(key string)

	// Len returns the number of registered shared streams.
	Len() int
}

// Options tune the cache. Only Source is required.
type Options[V any] struct {
	Source    Source[V]
	Namespace string // log/hook field; "" => "default"
	Logger    Logger // nil => NopLogger
	Hooks     Hooks  // nil => NopHooks

	// KeepErrors makes a new connection treat a key in the Error state as
	// attempted. By default a failed key is loaded again when its stream is
	// observed after all previous observers left.
	KeepErrors bool

	// MaxIdleStreams bounds how many shared streams without observers stay
	// registered. 0 keeps every stream for the life of the cache.
	MaxIdleStreams int
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
