package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RuliLG/docc/internal/script"
)

// State is the controller's playback state. One state machine exists per
// presentation, not per block; navigation resets it through Stop.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Completion is emitted once per natural end-of-resource.
type Completion struct {
	Index int
}

// Controller owns the single active handle and guarantees at most one
// resource is attached to output at any instant. A generation counter makes
// cancellation cooperative: Stop and fresh plays bump the generation, and
// any resolution result or completion signal carrying a stale generation is
// ignored.
type Controller struct {
	mu       sync.Mutex
	resolver *Resolver
	state    State
	handle   Handle
	index    int
	rate     float64
	gen      uint64
	lastErr  error

	completions chan Completion
	logger      *slog.Logger
}

func NewController(resolver *Resolver, logger *slog.Logger) *Controller {
	return &Controller{
		resolver:    resolver,
		state:       StateIdle,
		index:       -1,
		rate:        1.0,
		completions: make(chan Completion, 1),
		logger:      logger.With(slog.String("component", "playback-controller")),
	}
}

// Play starts (or resumes) playback of the block at index. Permitted from
// Idle, Paused and Error only. Playing the paused block resumes it at the
// same position; anything else stops the active handle, resolves a fresh
// one and starts it from zero.
func (c *Controller) Play(ctx context.Context, doc *script.Document, index int) error {
	if index < 0 || index >= doc.Len() {
		return fmt.Errorf("block index %d out of range [0,%d)", index, doc.Len())
	}

	c.mu.Lock()
	switch c.state {
	case StateIdle, StatePaused, StateError:
	default:
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("play not permitted while %s", st)
	}

	if c.state == StatePaused && c.handle != nil && c.index == index {
		if err := c.handle.Resume(); err != nil {
			c.toErrorLocked(&PlaybackError{Index: index, Err: err})
			c.mu.Unlock()
			return err
		}
		c.state = StatePlaying
		c.mu.Unlock()
		return nil
	}

	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.lastErr = nil
	prev := c.handle
	c.handle = nil
	c.mu.Unlock()

	// Reset any previous resource to position zero before the new one can
	// produce output.
	if prev != nil {
		_ = prev.Stop()
	}

	h, err := c.resolver.Resolve(ctx, doc, index)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Superseded by stop or navigation while resolving; the cached
		// handle stays valid for a later play.
		return nil
	}
	if err != nil {
		c.toErrorLocked(err)
		return err
	}
	if err := h.SetRate(c.rate); err != nil {
		c.logger.Warn("failed to apply playback rate", slogError(err))
	}
	if err := h.Start(ctx); err != nil {
		perr := &PlaybackError{Index: index, Err: err}
		c.toErrorLocked(perr)
		return perr
	}
	c.handle = h
	c.index = index
	c.state = StatePlaying
	go c.watch(gen, index, h.Done())
	return nil
}

// watch waits for the handle's single settlement signal and, for a natural
// completion, emits it to the auto-advance consumer.
func (c *Controller) watch(gen uint64, index int, done <-chan error) {
	err := <-done

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if errors.Is(err, ErrStopped) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.toErrorLocked(&PlaybackError{Index: index, Err: err})
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	select {
	case c.completions <- Completion{Index: index}:
	default:
		c.logger.Warn("completion signal dropped", slog.Int("block", index))
	}
}

// Pause suspends output without discarding the handle.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying || c.handle == nil {
		return nil
	}
	if err := c.handle.Pause(); err != nil {
		return err
	}
	c.state = StatePaused
	return nil
}

// Stop moves to Idle from any state, resets the active resource to zero and
// clears the last error.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	h := c.handle
	c.state = StateIdle
	c.lastErr = nil
	c.mu.Unlock()
	if h != nil {
		_ = h.Stop()
	}
}

// SetRate applies immediately to the active handle if one exists and
// persists as the default for subsequently resolved handles.
func (c *Controller) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = rate
	if c.handle != nil {
		return c.handle.SetRate(rate)
	}
	return nil
}

func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Completions delivers one signal per natural end-of-resource.
func (c *Controller) Completions() <-chan Completion {
	return c.completions
}

// toErrorLocked records a failure and clears the transient flags. Caller
// holds c.mu.
func (c *Controller) toErrorLocked(err error) {
	c.state = StateError
	c.lastErr = err
	c.logger.Warn("playback failed", slogError(err))
}
