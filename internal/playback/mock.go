package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockOutput produces timed handles that "play" for a fixed wall-clock
// duration scaled by the playback rate. Used by tests and by the terminal
// presenter when no audio player is installed.
type MockOutput struct {
	Duration time.Duration
}

func NewMockOutput(duration time.Duration) *MockOutput {
	return &MockOutput{Duration: duration}
}

func (o *MockOutput) Open(source string) (Handle, error) {
	if source == "" {
		return nil, errors.New("empty audio source")
	}
	return &mockHandle{
		source:    source,
		duration:  o.Duration,
		remaining: o.Duration,
		rate:      1.0,
	}, nil
}

type mockHandle struct {
	mu        sync.Mutex
	source    string
	duration  time.Duration
	remaining time.Duration
	rate      float64

	playing        bool
	paused         bool
	timer          *time.Timer
	armedAt        time.Time
	armedRemaining time.Duration
	done           chan error
}

func (h *mockHandle) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing {
		return fmt.Errorf("handle for %s already started", h.source)
	}
	h.done = make(chan error, 1)
	h.playing = true
	h.paused = false
	h.arm()
	return nil
}

// arm schedules the natural completion for the remaining duration at the
// current rate. Caller holds h.mu.
func (h *mockHandle) arm() {
	h.armedAt = time.Now()
	h.armedRemaining = h.remaining
	scaled := time.Duration(float64(h.remaining) / h.rate)
	done := h.done
	h.timer = time.AfterFunc(scaled, func() {
		h.mu.Lock()
		if !h.playing || h.paused || h.done != done {
			h.mu.Unlock()
			return
		}
		h.playing = false
		h.remaining = h.duration
		h.mu.Unlock()
		done <- nil
	})
}

// consume folds the elapsed play time into the remaining duration. Caller
// holds h.mu.
func (h *mockHandle) consume() {
	consumed := time.Duration(float64(time.Since(h.armedAt)) * h.rate)
	h.remaining = h.armedRemaining - consumed
	if h.remaining < 0 {
		h.remaining = 0
	}
}

func (h *mockHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.playing || h.paused {
		return nil
	}
	h.timer.Stop()
	h.consume()
	h.paused = true
	return nil
}

func (h *mockHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.playing || !h.paused {
		return nil
	}
	h.paused = false
	h.arm()
	return nil
}

func (h *mockHandle) Stop() error {
	h.mu.Lock()
	if !h.playing {
		h.remaining = h.duration
		h.mu.Unlock()
		return nil
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.playing = false
	h.paused = false
	h.remaining = h.duration
	done := h.done
	h.mu.Unlock()
	select {
	case done <- ErrStopped:
	default:
	}
	return nil
}

func (h *mockHandle) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing && !h.paused {
		h.timer.Stop()
		h.consume()
		h.rate = rate
		h.arm()
		return nil
	}
	h.rate = rate
	return nil
}

func (h *mockHandle) Done() <-chan error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}
