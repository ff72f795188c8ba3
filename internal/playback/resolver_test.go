package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/RuliLG/docc/internal/script"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	f.calls++
	f.texts = append(f.texts, text)
	return "synth://audio/" + text, false, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingOutput wraps MockOutput and records every opened source.
type recordingOutput struct {
	mu      sync.Mutex
	inner   *MockOutput
	sources []string
}

func newRecordingOutput(d time.Duration) *recordingOutput {
	return &recordingOutput{inner: NewMockOutput(d)}
}

func (o *recordingOutput) Open(source string) (Handle, error) {
	o.mu.Lock()
	o.sources = append(o.sources, source)
	o.mu.Unlock()
	return o.inner.Open(source)
}

func (o *recordingOutput) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sources...)
}

func strptr(s string) *string { return &s }

func testDoc() *script.Document {
	return &script.Document{
		RepositoryPath: "/repos/demo",
		Question:       "how?",
		Script: []script.Block{
			{Type: script.BlockText, Markdown: "intro narration"},
			{Type: script.BlockCode, File: "/repos/demo/main.go", Markdown: "code narration", AudioFile: "block_1.mp3"},
			{Type: script.BlockText, Markdown: "outro narration"},
		},
	}
}

func TestResolutionPrecedenceAudioFilesWins(t *testing.T) {
	doc := testDoc()
	doc.AudioFiles = []*string{nil, strptr("http://host/a.mp3"), nil}
	out := newRecordingOutput(20 * time.Millisecond)
	synth := &fakeSynth{}
	r := NewResolver(out, synth, "/sessions", newLogger())
	r.SetSessionFolder("sess-1")

	// Block 1 has both a pre-generated URL and a session-local file; the
	// URL must win.
	if _, err := r.Resolve(context.Background(), doc, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	opened := out.opened()
	if len(opened) != 1 || opened[0] != "http://host/a.mp3" {
		t.Fatalf("expected audio_files url to win, opened %v", opened)
	}
	if synth.callCount() != 0 {
		t.Fatalf("expected no synthesis call, got %d", synth.callCount())
	}
}

func TestSessionLocalResolution(t *testing.T) {
	doc := testDoc()
	out := newRecordingOutput(20 * time.Millisecond)
	r := NewResolver(out, &fakeSynth{}, "/sessions/", newLogger())
	r.SetSessionFolder("demo_20250101")

	if _, err := r.Resolve(context.Background(), doc, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	opened := out.opened()
	want := "/sessions/demo_20250101/audio/block_1.mp3"
	if len(opened) != 1 || opened[0] != want {
		t.Fatalf("expected %q, opened %v", want, opened)
	}
}

func TestSessionFileWithoutFolderFails(t *testing.T) {
	doc := testDoc()
	r := NewResolver(newRecordingOutput(time.Millisecond), &fakeSynth{}, "/sessions", newLogger())

	_, err := r.Resolve(context.Background(), doc, 1)
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if resErr.Index != 1 {
		t.Fatalf("expected index 1 in error, got %d", resErr.Index)
	}
}

func TestSynthesisFailureIsNetworkError(t *testing.T) {
	doc := testDoc()
	synth := &fakeSynth{err: errors.New("backend unreachable")}
	r := NewResolver(newRecordingOutput(time.Millisecond), synth, "", newLogger())

	_, err := r.Resolve(context.Background(), doc, 0)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestIdempotentResolve(t *testing.T) {
	doc := testDoc()
	synth := &fakeSynth{}
	r := NewResolver(newRecordingOutput(20*time.Millisecond), synth, "", newLogger())

	h1, err := r.Resolve(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	h2, err := r.Resolve(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected identical handle instance on repeat resolve")
	}
	if synth.callCount() != 1 {
		t.Fatalf("expected a single synthesis call, got %d", synth.callCount())
	}
}

func TestSessionFolderChangeInvalidatesCache(t *testing.T) {
	doc := testDoc()
	synth := &fakeSynth{}
	r := NewResolver(newRecordingOutput(20*time.Millisecond), synth, "/sessions", newLogger())

	h1, err := r.Resolve(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.CacheSize() != 1 {
		t.Fatalf("expected cache size 1, got %d", r.CacheSize())
	}

	r.SetSessionFolder("other")
	if r.CacheSize() != 0 {
		t.Fatalf("expected cache size 0 after folder change, got %d", r.CacheSize())
	}

	h2, err := r.Resolve(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("resolve after invalidation: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected a fresh handle after cache invalidation")
	}
	if synth.callCount() != 2 {
		t.Fatalf("expected re-synthesis after invalidation, got %d calls", synth.callCount())
	}
}

func TestFallbackCacheKeyIsNarrationText(t *testing.T) {
	doc := &script.Document{
		RepositoryPath: "/r",
		Question:       "q",
		Script: []script.Block{
			{Type: script.BlockText, Markdown: "same narration"},
			{Type: script.BlockText, Markdown: "same narration"},
		},
	}
	synth := &fakeSynth{}
	r := NewResolver(newRecordingOutput(20*time.Millisecond), synth, "", newLogger())

	h0, err := r.Resolve(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("resolve 0: %v", err)
	}
	h1, err := r.Resolve(context.Background(), doc, 1)
	if err != nil {
		t.Fatalf("resolve 1: %v", err)
	}
	if h0 != h1 {
		t.Fatal("identical narration text must share one cache entry")
	}
	if synth.callCount() != 1 {
		t.Fatalf("expected one synthesis call for identical text, got %d", synth.callCount())
	}
}
