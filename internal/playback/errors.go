package playback

import (
	"errors"
	"fmt"
)

// ErrStopped is delivered on a handle's Done channel when playback was cut
// short by an explicit Stop. It is not a natural completion and never
// triggers auto-advance.
var ErrStopped = errors.New("playback stopped")

// ResolutionError means no viable audio source exists for a block in the
// current session context.
type ResolutionError struct {
	Index  int
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no audio source for block %d: %s", e.Index, e.Reason)
}

// NetworkError wraps a failed synthesis or audio fetch call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PlaybackError wraps a decode or playback fault reported by a handle.
type PlaybackError struct {
	Index int
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed for block %d: %v", e.Index, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
