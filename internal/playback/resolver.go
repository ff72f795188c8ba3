package playback

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/RuliLG/docc/internal/script"
)

// SynthesisClient requests on-demand narration audio from the synthesis
// backend and returns a playable URL for it.
type SynthesisClient interface {
	Synthesize(ctx context.Context, text string) (url string, cacheHit bool, err error)
}

// Resolver maps a block to a playable handle, creating each handle at most
// once per distinct cache key. Source precedence:
//
//  1. the document's audio_files entry for the block
//  2. the block's session-local audio filename under the session folder
//  3. on-demand synthesis of the narration text
//
// Cache keys follow the same order: resolved URL, session-relative filename,
// narration text. The whole cache is discarded when the session folder
// changes; entries are never shared across sessions.
type Resolver struct {
	mu            sync.Mutex
	output        Output
	synth         SynthesisClient
	sessionBase   string
	sessionFolder string
	cache         map[string]Handle
	logger        *slog.Logger
	hits          metric.Int64Counter
	misses        metric.Int64Counter
}

func NewResolver(output Output, synth SynthesisClient, sessionBase string, logger *slog.Logger) *Resolver {
	r := &Resolver{
		output:      output,
		synth:       synth,
		sessionBase: strings.TrimRight(sessionBase, "/"),
		cache:       make(map[string]Handle),
		logger:      logger.With(slog.String("component", "audio-resolver")),
	}
	meter := otel.Meter("github.com/RuliLG/docc/playback")
	var err error
	if r.hits, err = meter.Int64Counter("docc.playback.cache.hits", metric.WithDescription("Audio cache hits")); err != nil {
		r.logger.Warn("failed to initialize cache hit counter", slogError(err))
	}
	if r.misses, err = meter.Int64Counter("docc.playback.cache.misses", metric.WithDescription("Audio cache misses")); err != nil {
		r.logger.Warn("failed to initialize cache miss counter", slogError(err))
	}
	return r
}

// Resolve returns the handle for the block at index. Repeat calls with an
// unchanged key return the identical handle without touching the network;
// the lock is held for the whole resolution so a second request for the same
// key can never race an outstanding fetch.
func (r *Resolver) Resolve(ctx context.Context, doc *script.Document, index int) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block := doc.Block(index)
	key, source, err := r.locate(index, block, doc)
	if err != nil {
		return nil, err
	}
	if h, ok := r.cache[key]; ok {
		if r.hits != nil {
			r.hits.Add(ctx, 1)
		}
		return h, nil
	}
	if r.misses != nil {
		r.misses.Add(ctx, 1)
	}

	if source == "" {
		// Synthesis deferred until after the cache check so a quick replay
		// never issues a duplicate network call.
		url, cacheHit, err := r.synth.Synthesize(ctx, block.Narration())
		if err != nil {
			return nil, &NetworkError{Op: "synthesize narration", Err: err}
		}
		r.logger.Debug("narration synthesized",
			slog.Int("block", index),
			slog.Bool("backend_cache_hit", cacheHit))
		source = url
	}

	h, err := r.output.Open(source)
	if err != nil {
		return nil, &ResolutionError{Index: index, Reason: err.Error()}
	}
	r.cache[key] = h
	return h, nil
}

// locate picks the audio source for a block without performing any network
// work. An empty source with a nil error means case 3: synthesize on demand,
// keyed by the narration text.
func (r *Resolver) locate(index int, block script.Block, doc *script.Document) (key, source string, err error) {
	if url, ok := doc.AudioURL(index); ok {
		return url, url, nil
	}
	if block.AudioFile != "" {
		if r.sessionFolder == "" {
			return "", "", &ResolutionError{Index: index, Reason: "block has session audio but no session folder is configured"}
		}
		return block.AudioFile, r.sessionBase + "/" + r.sessionFolder + "/audio/" + block.AudioFile, nil
	}
	if block.Narration() == "" {
		return "", "", &ResolutionError{Index: index, Reason: "block has no narration text"}
	}
	return block.Narration(), "", nil
}

// SetSessionFolder discards every cache entry. Handles bound to the previous
// session are stopped so none of them can keep producing output.
func (r *Resolver) SetSessionFolder(folder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.cache {
		_ = h.Stop()
	}
	r.cache = make(map[string]Handle)
	r.sessionFolder = folder
}

func (r *Resolver) SessionFolder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionFolder
}

func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
