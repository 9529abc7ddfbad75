package replaycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the delivery path.
type Hooks interface {
	// A shared stream was registered for key.
	StreamCreated(key string)
	// A shared stream subscribed to its source (first observer arrived).
	StreamConnected(key string)
	// A shared stream released its source (last observer left).
	StreamReleased(key string)
	// An idle shared stream was dropped from the registry (MaxIdleStreams).
	StreamEvicted(key string)

	// A load command was issued.
	// reason ∈ {"unattempted", "retry", "reload"}
	LoadDispatched(key, reason string)

	// Store side: a completion arrived after a newer load was dispatched
	// and was dropped.
	StaleCompletion(key string)
	// Store side: fetch failed; the key is now in the Error state.
	FetchFailed(key string, err error)
	// Store side: the L2 provider or the generation store failed.
	// op ∈ {"gen", "get", "set", "encode", "decode"}
	ProviderError(op, key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StreamCreated(string)                {}
func (NopHooks) StreamConnected(string)              {}
func (NopHooks) StreamReleased(string)               {}
func (NopHooks) StreamEvicted(string)                {}
func (NopHooks) LoadDispatched(string, string)       {}
func (NopHooks) StaleCompletion(string)              {}
func (NopHooks) FetchFailed(string, error)           {}
func (NopHooks) ProviderError(string, string, error) {}
