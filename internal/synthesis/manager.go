package synthesis

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/RuliLG/docc/internal/config"
)

// Manager selects a synthesis provider and fronts it with a content-keyed
// disk cache. Cache entries are mp3 files named by the md5 of the narration
// text, so identical text never synthesizes twice across runs.
type Manager struct {
	mu        sync.Mutex
	providers []Provider
	provider  Provider
	cacheDir  string
	maxBytes  int64
	maxText   int
	logger    *slog.Logger
}

func NewManager(cfg config.SynthesisConfig, logger *slog.Logger) (*Manager, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create synthesis cache dir: %w", err)
	}

	m := &Manager{
		providers: providers,
		cacheDir:  cfg.CacheDir,
		maxBytes:  int64(cfg.CacheMaxSizeMB) * 1024 * 1024,
		maxText:   cfg.MaxTextLength,
		logger:    logger.With(slog.String("component", "synthesis")),
	}
	m.provider = m.selectProvider(cfg.Provider)
	if m.provider != nil {
		m.logger.Info("synthesis provider selected", slog.String("provider", m.provider.Name()))
	} else {
		m.logger.Warn("no synthesis provider available")
	}
	return m, nil
}

func buildProviders(cfg config.SynthesisConfig) ([]Provider, error) {
	switch cfg.Provider {
	case "mock":
		return []Provider{NewMockProvider(0)}, nil
	case "exec":
		p, err := NewExecProvider(cfg.Command)
		if err != nil {
			return nil, err
		}
		return []Provider{p}, nil
	}

	providers := []Provider{
		NewElevenLabsProvider(cfg.ElevenLabsKey, cfg.ElevenLabsVoice, cfg.ElevenLabsModel),
		NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIVoice),
	}
	if cfg.Command != "" {
		p, err := NewExecProvider(cfg.Command)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// selectProvider returns the preferred provider when it is available,
// otherwise the first available one.
func (m *Manager) selectProvider(preferred string) Provider {
	if preferred != "" && preferred != "auto" {
		for _, p := range m.providers {
			if p.Name() == preferred && p.Available() {
				return p
			}
		}
		m.logger.Warn("preferred synthesis provider unavailable, trying all",
			slog.String("preferred", preferred))
	}
	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// Available reports whether any provider can synthesize.
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider != nil
}

// ProviderName returns the active provider's name, or "" when none is
// available.
func (m *Manager) ProviderName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return ""
	}
	return m.provider.Name()
}

// AvailableProviders lists every configured provider that reports itself
// usable.
func (m *Manager) AvailableProviders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

func cacheFilename(text string) string {
	return fmt.Sprintf("%x.mp3", md5.Sum([]byte(text)))
}

// Speak returns the audio for text, serving from the disk cache when the
// same text was synthesized before.
func (m *Manager) Speak(ctx context.Context, text string) (audio []byte, cacheHit bool, err error) {
	path, cacheHit, err := m.SpeakToFile(ctx, text)
	if err != nil {
		return nil, false, err
	}
	audio, err = os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read cached audio: %w", err)
	}
	return audio, cacheHit, nil
}

// SpeakToFile is like Speak but returns the cache file path instead of the
// bytes, so large payloads can be streamed or handed to a player directly.
func (m *Manager) SpeakToFile(ctx context.Context, text string) (path string, cacheHit bool, err error) {
	if len(text) == 0 {
		return "", false, fmt.Errorf("synthesis text empty")
	}
	if m.maxText > 0 && len(text) > m.maxText {
		return "", false, fmt.Errorf("synthesis text too long: %d chars (limit %d)", len(text), m.maxText)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Join(m.cacheDir, cacheFilename(text))
	if _, statErr := os.Stat(path); statErr == nil {
		return path, true, nil
	}

	if m.provider == nil {
		return "", false, fmt.Errorf("no synthesis providers available, set ELEVENLABS_API_KEY or OPENAI_API_KEY")
	}
	audio, err := m.provider.Speak(ctx, text)
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", false, fmt.Errorf("write audio cache entry: %w", err)
	}
	m.enforceBudgetLocked()
	return path, false, nil
}

// CacheStats returns the number of cached entries and their total size in
// bytes.
func (m *Manager) CacheStats() (entries int, bytes int64, err error) {
	files, err := m.cacheEntries()
	if err != nil {
		return 0, 0, err
	}
	for _, f := range files {
		bytes += f.size
	}
	return len(files), bytes, nil
}

// ClearCache removes every cached audio file.
func (m *Manager) ClearCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, err := m.cacheEntries()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

type cacheEntry struct {
	path    string
	size    int64
	modUnix int64
}

func (m *Manager) cacheEntries() ([]cacheEntry, error) {
	matches, err := filepath.Glob(filepath.Join(m.cacheDir, "*.mp3"))
	if err != nil {
		return nil, err
	}
	var entries []cacheEntry
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		entries = append(entries, cacheEntry{path: p, size: info.Size(), modUnix: info.ModTime().Unix()})
	}
	return entries, nil
}

// enforceBudgetLocked evicts the oldest entries until the cache fits the
// configured size budget.
func (m *Manager) enforceBudgetLocked() {
	if m.maxBytes <= 0 {
		return
	}
	entries, err := m.cacheEntries()
	if err != nil {
		m.logger.Warn("cache scan failed", slogError(err))
		return
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= m.maxBytes {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modUnix < entries[j].modUnix })
	for _, e := range entries {
		if total <= m.maxBytes {
			break
		}
		if err := os.Remove(e.path); err != nil {
			m.logger.Warn("cache eviction failed", slogError(err))
			continue
		}
		total -= e.size
		m.logger.Debug("evicted cache entry", slog.String("path", e.path))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
