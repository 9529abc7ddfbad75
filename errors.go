package replaycache

import (
	"errors"
	"fmt"
)

var (
	ErrSourceRequired = errors.New("replaycache: source is required")
	ErrNegativeIdle   = errors.New("replaycache: MaxIdleStreams must not be negative")
)

// LoadError is the cause a Source records when loading Key failed.
// Failures travel through streams as State values, never as panics.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %q failed", e.Key)
	}
	return fmt.Sprintf("load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
