package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/script"
	"github.com/RuliLG/docc/internal/scriptgen"
	"github.com/RuliLG/docc/internal/sessionstore"
	"github.com/RuliLG/docc/internal/synthesis"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	tmp := t.TempDir()

	cfg := config.Default()
	cfg.Synthesis.Provider = "mock"
	cfg.Synthesis.CacheDir = filepath.Join(tmp, "cache")
	cfg.ScriptGen.Provider = "mock"
	cfg.Sessions.Dir = filepath.Join(tmp, "sessions")
	cfg.Sessions.IndexPath = filepath.Join(tmp, "index.db")

	scripts, err := scriptgen.NewService(cfg.ScriptGen, nil, newLogger())
	if err != nil {
		t.Fatalf("new scriptgen: %v", err)
	}
	synth, err := synthesis.NewManager(cfg.Synthesis, newLogger())
	if err != nil {
		t.Fatalf("new synthesis: %v", err)
	}
	store, err := sessionstore.Open(context.Background(), cfg.Sessions, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return New(cfg, scripts, synth, store, newLogger())
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGenerateAudioAndFetch(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/generate-audio", `{"text":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp audioResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CacheHit {
		t.Fatal("first synthesis must be a cache miss")
	}
	if !strings.HasPrefix(resp.AudioURL, "/api/v1/audio/") {
		t.Fatalf("unexpected audio url %q", resp.AudioURL)
	}

	audioRec := doJSON(t, s.Handler(), http.MethodGet, resp.AudioURL, "")
	if audioRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching audio, got %d", audioRec.Code)
	}
	if ct := audioRec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if audioRec.Body.Len() == 0 {
		t.Fatal("expected audio bytes")
	}

	// Same text again reports a cache hit.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/generate-audio", `{"text":"hello"}`)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.CacheHit {
		t.Fatal("second synthesis of identical text must be a cache hit")
	}
}

func TestGenerateAudioValidation(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/generate-audio", `{"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetAudioNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/audio/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGenerateScriptWithAudio(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/generate-script",
		`{"repository_path":"/repos/demo","question":"how does it work?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp scriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Script) != 2 {
		t.Fatalf("expected 2 blocks from mock provider, got %d", len(resp.Script))
	}
	if len(resp.AudioFiles) != len(resp.Script) {
		t.Fatalf("expected index-aligned audio urls, got %d for %d blocks", len(resp.AudioFiles), len(resp.Script))
	}
	for _, url := range resp.AudioFiles {
		if fetch := doJSON(t, s.Handler(), http.MethodGet, url, ""); fetch.Code != http.StatusOK {
			t.Fatalf("audio url %s not servable: %d", url, fetch.Code)
		}
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s.Handler(), http.MethodPost, "/api/v1/generate-audio", `{"text":"hello"}`)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/cache/stats", "")
	var stats cacheStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.CachedFilesCount != 1 || stats.CacheSizeBytes == 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/v1/cache", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 clearing cache, got %d", rec.Code)
	}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/cache/stats", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.CachedFilesCount != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}
}

func TestAvailableProviders(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/available-providers", "")
	var resp providersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode providers: %v", err)
	}
	if len(resp.TTSProviders) != 1 || resp.TTSProviders[0].ID != "mock" {
		t.Fatalf("expected mock tts provider, got %+v", resp.TTSProviders)
	}
	if len(resp.AIProviders) != 1 || resp.AIProviders[0].ID != "mock" {
		t.Fatalf("expected mock ai provider, got %+v", resp.AIProviders)
	}
}

func TestFileContentWithRange(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "sample.go")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	rec := doJSON(t, s.Handler(), http.MethodGet,
		"/api/v1/file-content?file_path="+path+"&from_line=2&to_line=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp fileContentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Content != "two\nthree" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.TotalLines != 4 {
		t.Fatalf("unexpected total lines %d", resp.TotalLines)
	}
}

func TestFileContentRejectsRelativePath(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/file-content?file_path=relative.go", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionsListAndGet(t *testing.T) {
	s := newTestServer(t)
	doc := &script.Document{
		RepositoryPath: "/repos/demo",
		Question:       "q",
		Script:         []script.Block{{Type: script.BlockText, Markdown: "hello"}},
	}
	if err := s.store.Save(context.Background(), "demo_20250101_000000", doc); err != nil {
		t.Fatalf("save session: %v", err)
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/sessions", "")
	var sessions []sessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Folder != "demo_20250101_000000" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/sessions/demo_20250101_000000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	loaded, err := script.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse session document: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("unexpected document %+v", loaded)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQuickSystemCheckShape(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/system-check/quick", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, key := range []string{"system_ready", "has_ai_cli", "has_tts"} {
		if _, ok := resp[key]; !ok {
			t.Fatalf("missing %s in %v", key, resp)
		}
	}
}
