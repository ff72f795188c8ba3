package playback

import (
	"log/slog"
	"sync"
	"time"
)

// AutoAdvance schedules progression to the next block after a natural
// completion. The pending timer is an explicit, cancellable token: it is
// cleared on manual navigation, on stop, on teardown and when a second
// completion arrives before the first timer fires. A fired timer whose
// target no longer matches the current index is a no-op.
type AutoAdvance struct {
	mu      sync.Mutex
	enabled bool
	delay   time.Duration
	timer   *time.Timer
	target  int
	seq     *Sequencer
	play    func(index int)
	logger  *slog.Logger
}

func NewAutoAdvance(seq *Sequencer, enabled bool, delay time.Duration, play func(index int), logger *slog.Logger) *AutoAdvance {
	return &AutoAdvance{
		enabled: enabled,
		delay:   delay,
		seq:     seq,
		play:    play,
		logger:  logger.With(slog.String("component", "auto-advance")),
	}
}

// OnCompletion arms the advance timer for the block after index. The delay
// may be zero; the advance still goes through the timer so it stays
// cancellable and never runs inline with the completion signal.
func (a *AutoAdvance) OnCompletion(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		// A second completion before the first timer fired; re-arm.
		a.timer.Stop()
		a.timer = nil
	}
	if !a.enabled {
		return
	}
	if index >= a.seq.Len()-1 {
		return
	}
	if a.seq.Index() != index {
		// Completion from a block the viewer already left.
		return
	}
	a.target = index + 1
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *AutoAdvance) fire() {
	a.mu.Lock()
	if a.timer == nil {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	target := a.target
	if a.seq.Index() != target-1 {
		// Viewer navigated during the delay window.
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.seq.Next()
	a.logger.Debug("auto-advancing", slog.Int("block", target))
	// One-shot auto-play intent for the newly current block.
	a.play(target)
}

// Cancel discards any pending advance.
func (a *AutoAdvance) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoAdvance) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	if !enabled && a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoAdvance) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *AutoAdvance) SetDelay(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = delay
}

func (a *AutoAdvance) Delay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delay
}
