package playback

import "context"

// Handle is a playable audio resource. A handle is created fully initialized
// by an Output and may be started any number of times, but never while a
// previous start is still active.
//
// Done returns the channel for the playback begun by the most recent Start.
// It delivers exactly one value: nil on natural completion, ErrStopped when
// the playback was cut short by Stop, or the underlying fault.
type Handle interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	// Stop halts output and resets the position to zero.
	Stop() error
	SetRate(rate float64) error
	Done() <-chan error
}

// Output turns a resolved audio source (URL or local path) into a Handle.
type Output interface {
	Open(source string) (Handle, error)
}
