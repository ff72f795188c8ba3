package playback

import (
	"context"
	"testing"
	"time"

	"github.com/RuliLG/docc/internal/script"
)

func newTestSession(t *testing.T, doc *script.Document, synth SynthesisClient, blockDuration time.Duration, autoPlay bool, delay time.Duration) *Session {
	t.Helper()
	s, err := NewSession(doc, Options{
		Output:        NewMockOutput(blockDuration),
		Synth:         synth,
		SessionBase:   "/sessions",
		AutoPlay:      autoPlay,
		AutoPlayDelay: delay,
		Logger:        newLogger(),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitUntil(t *testing.T, within time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func distinctDoc() *script.Document {
	return &script.Document{
		RepositoryPath: "/repos/demo",
		Question:       "q",
		Script: []script.Block{
			{Type: script.BlockText, Markdown: "narration zero"},
			{Type: script.BlockText, Markdown: "narration one"},
			{Type: script.BlockText, Markdown: "narration two"},
		},
	}
}

func TestNavigationCancelsPlayback(t *testing.T) {
	s := newTestSession(t, distinctDoc(), &fakeSynth{}, time.Second, false, 0)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !s.Snapshot().IsPlaying {
		t.Fatal("expected playing")
	}

	// Next must synchronously leave playback stopped; no waiting on the
	// in-flight resource.
	if idx := s.Next(); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	snap := s.Snapshot()
	if snap.IsPlaying || snap.IsPaused || snap.IsLoading {
		t.Fatalf("navigation must clear transient flags, got %+v", snap)
	}
}

func TestPreviousAtStartClampsButStops(t *testing.T) {
	s := newTestSession(t, distinctDoc(), &fakeSynth{}, time.Second, false, 0)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if idx := s.Previous(); idx != 0 {
		t.Fatalf("expected clamped index 0, got %d", idx)
	}
	if s.Snapshot().IsPlaying {
		t.Fatal("previous at index 0 must still stop playback")
	}
}

func TestAutoAdvancePlaysNextBlock(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, distinctDoc(), synth, 20*time.Millisecond, true, 10*time.Millisecond)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	ok := waitUntil(t, 2*time.Second, func() bool {
		snap := s.Snapshot()
		return snap.Index == 1 && snap.IsPlaying
	})
	if !ok {
		t.Fatalf("auto-advance never played block 1, snapshot %+v", s.Snapshot())
	}
}

func TestDelayedAutoAdvanceIsCancellable(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, distinctDoc(), synth, 20*time.Millisecond, true, 300*time.Millisecond)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	// Wait for natural completion; the advance timer is now pending.
	if !waitUntil(t, time.Second, func() bool { return !s.Snapshot().IsPlaying }) {
		t.Fatal("block 0 never completed")
	}

	// Stop inside the delay window.
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	time.Sleep(400 * time.Millisecond)
	snap := s.Snapshot()
	if snap.Index != 0 {
		t.Fatalf("cancelled advance still moved index to %d", snap.Index)
	}
	if snap.IsPlaying {
		t.Fatal("cancelled advance still started playback")
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected no synthesis for block 1, got %d calls", got)
	}
}

func TestAutoAdvanceStopsAtLastBlock(t *testing.T) {
	doc := &script.Document{
		RepositoryPath: "/r",
		Question:       "q",
		Script: []script.Block{
			{Type: script.BlockText, Markdown: "only block"},
		},
	}
	s := newTestSession(t, doc, &fakeSynth{}, 20*time.Millisecond, true, 10*time.Millisecond)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	snap := s.Snapshot()
	if snap.Index != 0 || snap.IsPlaying {
		t.Fatalf("expected presentation to rest at final block, got %+v", snap)
	}
}

func TestSetSessionFolderStopsAndClearsCache(t *testing.T) {
	s := newTestSession(t, distinctDoc(), &fakeSynth{}, time.Second, false, 0)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	s.SetSessionFolder("another-session")

	snap := s.Snapshot()
	if snap.IsPlaying {
		t.Fatal("session folder change must stop playback")
	}
	if size := s.resolver.CacheSize(); size != 0 {
		t.Fatalf("expected empty cache, got %d entries", size)
	}
	if snap.SessionFolder != "another-session" {
		t.Fatalf("unexpected session folder %q", snap.SessionFolder)
	}
}

// Mirrors the three-block walkthrough: block 1 carries a pre-generated URL,
// blocks 0 and 2 synthesize on demand with the narration text as cache key.
func TestEndToEndResolutionFlow(t *testing.T) {
	doc := &script.Document{
		RepositoryPath: "/repos/demo",
		Question:       "q",
		Script: []script.Block{
			{Type: script.BlockText, Markdown: "shared narration"},
			{Type: script.BlockCode, File: "/repos/demo/main.go", Markdown: "code narration"},
			{Type: script.BlockText, Markdown: "shared narration"},
		},
		AudioFiles: []*string{nil, strptr("http://host/a.mp3"), nil},
	}
	synth := &fakeSynth{}
	s := newTestSession(t, doc, synth, 10*time.Millisecond, false, 0)

	// Block 0: on-demand synthesis.
	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play block 0: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", got)
	}

	// Block 1: direct URL, no synthesis.
	s.Next()
	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play block 1: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("url-backed block must not synthesize, got %d calls", got)
	}

	// Block 2: identical narration text hits the text-keyed cache entry.
	s.Next()
	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play block 2: %v", err)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("text-keyed cache must be hit, got %d calls", got)
	}
}

func TestCloseCancelsPendingAdvance(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, distinctDoc(), synth, 20*time.Millisecond, true, 300*time.Millisecond)

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !waitUntil(t, time.Second, func() bool { return !s.Snapshot().IsPlaying }) {
		t.Fatal("block 0 never completed")
	}
	s.Close()
	time.Sleep(400 * time.Millisecond)
	if idx := s.seq.Index(); idx != 0 {
		t.Fatalf("teardown must cancel the pending advance, index moved to %d", idx)
	}
}
