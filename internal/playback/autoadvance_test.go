package playback

import (
	"context"
	"sync"
	"testing"
	"time"
)

type advanceRecorder struct {
	mu      sync.Mutex
	targets []int
}

func (r *advanceRecorder) play(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, index)
}

func (r *advanceRecorder) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.targets...)
}

// A timer that fires after the viewer navigated away must not advance or
// play: its target no longer matches the then-current index.
func TestFiredTimerIgnoresNavigatedIndex(t *testing.T) {
	seq := NewSequencer(distinctDoc())
	rec := &advanceRecorder{}
	adv := NewAutoAdvance(seq, true, 30*time.Millisecond, rec.play, newLogger())

	adv.OnCompletion(0)
	// Navigate without cancelling; the armed timer now targets a stale index.
	seq.Next()
	seq.Next()

	time.Sleep(150 * time.Millisecond)
	if calls := rec.calls(); len(calls) != 0 {
		t.Fatalf("stale timer still played, targets %v", calls)
	}
	if idx := seq.Index(); idx != 2 {
		t.Fatalf("stale timer moved index to %d", idx)
	}
}

func TestSecondCompletionRearmsTimer(t *testing.T) {
	seq := NewSequencer(distinctDoc())
	rec := &advanceRecorder{}
	adv := NewAutoAdvance(seq, true, 150*time.Millisecond, rec.play, newLogger())

	adv.OnCompletion(0)
	time.Sleep(50 * time.Millisecond)
	// Second completion before the first timer fired; must re-arm, not
	// stack a second advance.
	adv.OnCompletion(0)

	if !waitUntil(t, time.Second, func() bool { return len(rec.calls()) > 0 }) {
		t.Fatal("re-armed timer never fired")
	}
	time.Sleep(200 * time.Millisecond)
	if calls := rec.calls(); len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("expected a single advance to block 1, got %v", calls)
	}
	if idx := seq.Index(); idx != 1 {
		t.Fatalf("expected index 1 after re-armed advance, got %d", idx)
	}
}

// Manual navigation inside the delay window discards the pending advance
// entirely; the presentation rests wherever the viewer moved it.
func TestNavigationDuringDelayWindowSkipsAdvance(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, distinctDoc(), synth, 20*time.Millisecond, true, 300*time.Millisecond)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !waitUntil(t, time.Second, func() bool { return !s.Snapshot().IsPlaying }) {
		t.Fatal("block 0 never completed")
	}

	s.Next()
	s.Next()

	time.Sleep(400 * time.Millisecond)
	snap := s.Snapshot()
	if snap.Index != 2 {
		t.Fatalf("expected index 2 after navigation, got %d", snap.Index)
	}
	if snap.IsPlaying {
		t.Fatal("discarded advance still started playback")
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected no synthesis after navigation, got %d calls", got)
	}
}
