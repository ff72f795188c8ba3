package playback

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestController(t *testing.T, synth SynthesisClient, blockDuration time.Duration) *Controller {
	t.Helper()
	r := NewResolver(NewMockOutput(blockDuration), synth, "", newLogger())
	return NewController(r, newLogger())
}

func waitForState(t *testing.T, c *Controller, want State, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("controller never reached %s, stuck at %s", want, c.State())
}

func TestPlayCompletesNaturally(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 20*time.Millisecond)

	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := c.State(); got != StatePlaying {
		t.Fatalf("expected playing, got %s", got)
	}

	select {
	case comp := <-c.Completions():
		if comp.Index != 0 {
			t.Fatalf("expected completion for block 0, got %d", comp.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion signal")
	}
	waitForState(t, c, StateIdle, 100*time.Millisecond)
}

func TestPlayWhilePlayingRejected(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 200*time.Millisecond)

	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := c.Play(context.Background(), doc, 0); err == nil {
		t.Fatal("expected second play to be rejected while playing")
	}
}

// Rejected plays race the watch goroutine's transition to idle at natural
// completion; the rejection message must be built from a state captured
// under the lock.
func TestRejectedPlayDuringCompletion(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 5*time.Millisecond)

	for i := 0; i < 20; i++ {
		if err := c.Play(context.Background(), doc, 0); err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
		// Hammer the rejection path while the block runs out underneath it.
		for c.State() == StatePlaying {
			_ = c.Play(context.Background(), doc, 0)
		}
		select {
		case <-c.Completions():
		case <-time.After(time.Second):
			t.Fatalf("no completion on iteration %d", i)
		}
		waitForState(t, c, StateIdle, 100*time.Millisecond)
	}
}

func TestPauseResume(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 150*time.Millisecond)

	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := c.State(); got != StatePaused {
		t.Fatalf("expected paused, got %s", got)
	}

	// No completion may arrive while paused.
	select {
	case <-c.Completions():
		t.Fatal("unexpected completion while paused")
	case <-time.After(200 * time.Millisecond):
	}

	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.State(); got != StatePlaying {
		t.Fatalf("expected playing after resume, got %s", got)
	}
	select {
	case <-c.Completions():
	case <-time.After(time.Second):
		t.Fatal("no completion after resume")
	}
}

func TestStopSuppressesCompletion(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 30*time.Millisecond)

	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	c.Stop()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle after stop, got %s", got)
	}
	select {
	case <-c.Completions():
		t.Fatal("stopped playback must not signal completion")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestResolutionFailureEntersError(t *testing.T) {
	doc := testDoc()
	synth := &fakeSynth{err: errors.New("backend down")}
	c := newTestController(t, synth, 20*time.Millisecond)

	if err := c.Play(context.Background(), doc, 0); err == nil {
		t.Fatal("expected play to fail")
	}
	if got := c.State(); got != StateError {
		t.Fatalf("expected error state, got %s", got)
	}
	var netErr *NetworkError
	if !errors.As(c.LastError(), &netErr) {
		t.Fatalf("expected NetworkError, got %v", c.LastError())
	}

	// Recovery is viewer-initiated: a later play is permitted.
	synth.mu.Lock()
	synth.err = nil
	synth.mu.Unlock()
	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("retry play: %v", err)
	}
	if got := c.State(); got != StatePlaying {
		t.Fatalf("expected playing after retry, got %s", got)
	}
}

func TestStopClearsLastError(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{err: errors.New("boom")}, time.Millisecond)

	_ = c.Play(context.Background(), doc, 0)
	if c.LastError() == nil {
		t.Fatal("expected recorded error")
	}
	c.Stop()
	if c.LastError() != nil {
		t.Fatalf("expected error cleared by stop, got %v", c.LastError())
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestSetRatePersistsAcrossBlocks(t *testing.T) {
	doc := testDoc()
	c := newTestController(t, &fakeSynth{}, 200*time.Millisecond)

	if err := c.SetRate(4.0); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	start := time.Now()
	if err := c.Play(context.Background(), doc, 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	select {
	case <-c.Completions():
		if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
			t.Fatalf("rate not applied, 200ms block took %v at 4x", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}
	if c.Rate() != 4.0 {
		t.Fatalf("rate must persist, got %v", c.Rate())
	}

	if err := c.SetRate(0); err == nil {
		t.Fatal("expected rejection of non-positive rate")
	}
}
