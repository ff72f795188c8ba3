package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RuliLG/docc/internal/script"
	"github.com/RuliLG/docc/internal/sessionstore"
)

type scriptRequest struct {
	RepositoryPath string `json:"repository_path"`
	Question       string `json:"question"`
	AIProvider     string `json:"ai_provider,omitempty"`
	TTSProvider    string `json:"tts_provider,omitempty"`
}

type scriptResponse struct {
	Script     []script.Block `json:"script"`
	AudioFiles []string       `json:"audio_files"`
}

type audioRequest struct {
	Text string `json:"text"`
}

type audioResponse struct {
	AudioURL string `json:"audio_url"`
	CacheHit bool   `json:"cache_hit"`
}

type cacheStatsResponse struct {
	CacheSizeBytes   int64   `json:"cache_size_bytes"`
	CacheSizeMB      float64 `json:"cache_size_mb"`
	CachedFilesCount int     `json:"cached_files_count"`
}

type providerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type providersResponse struct {
	AIProviders  []providerInfo `json:"ai_providers"`
	TTSProviders []providerInfo `json:"tts_providers"`
}

type fileContentResponse struct {
	FilePath   string `json:"file_path"`
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
	FromLine   *int   `json:"from_line"`
	ToLine     *int   `json:"to_line"`
}

type sessionInfo struct {
	Folder         string    `json:"folder"`
	RepositoryPath string    `json:"repository_path"`
	Question       string    `json:"question"`
	Blocks         int       `json:"blocks"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RepositoryPath == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "repository_path and question are required")
		return
	}

	doc, err := s.scripts.GenerateWith(r.Context(), req.RepositoryPath, req.Question, req.AIProvider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := scriptResponse{Script: doc.Script}
	if !s.synth.Available() {
		s.logger.Warn("no synthesis provider available, skipping audio generation")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	for i, block := range doc.Script {
		audio, _, err := s.synth.Speak(r.Context(), block.Narration())
		if err != nil {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("failed to generate audio for block %d: %v", i, err))
			return
		}
		if len(audio) == 0 {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("failed to generate audio for block %d", i))
			return
		}
		id := s.registry.Put(audio)
		resp.AudioFiles = append(resp.AudioFiles, "/api/v1/audio/"+id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, cacheHit, err := s.synth.Speak(r.Context(), req.Text)
	if err != nil {
		s.logger.Warn("audio generation failed", slogError(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id := s.registry.Put(audio)
	writeJSON(w, http.StatusOK, audioResponse{
		AudioURL: "/api/v1/audio/" + id,
		CacheHit: cacheHit,
	})
}

func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "audioID")
	audio, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=audio.mp3")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	entries, size, err := s.synth.CacheStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		CacheSizeBytes:   size,
		CacheSizeMB:      float64(size) / (1024 * 1024),
		CachedFilesCount: entries,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.synth.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

var providerDisplayNames = map[string]string{
	"claude_code": "Claude Code",
	"opencode":    "OpenCode",
	"elevenlabs":  "ElevenLabs",
	"openai":      "OpenAI TTS",
	"exec":        "Custom Command",
	"mock":        "Mock",
}

func (s *Server) handleAvailableProviders(w http.ResponseWriter, r *http.Request) {
	resp := providersResponse{
		AIProviders:  []providerInfo{},
		TTSProviders: []providerInfo{},
	}
	for _, id := range s.scripts.AvailableProviders() {
		resp.AIProviders = append(resp.AIProviders, providerInfo{ID: id, Name: displayName(id)})
	}
	for _, id := range s.synth.AvailableProviders() {
		resp.TTSProviders = append(resp.TTSProviders, providerInfo{ID: id, Name: displayName(id)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func displayName(id string) string {
	if name, ok := providerDisplayNames[id]; ok {
		return name
	}
	return id
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("file_path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if !filepath.IsAbs(path) {
		writeError(w, http.StatusBadRequest, "file path must be absolute")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info.IsDir() {
		writeError(w, http.StatusBadRequest, "path is not a file")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("error reading file: %v", err))
		return
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	resp := fileContentResponse{FilePath: path, TotalLines: len(lines)}
	from, fromOK := queryInt(r, "from_line")
	to, toOK := queryInt(r, "to_line")
	if fromOK && toOK {
		start := max(0, from-1)
		end := min(len(lines), to)
		if start > end {
			start = end
		}
		resp.Content = strings.Join(lines[start:end], "\n")
		resp.FromLine = &from
		resp.ToLine = &to
	} else {
		resp.Content = strings.Join(lines, "\n")
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *Server) handleSystemCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.Check(r.Context()))
}

func (s *Server) handleQuickSystemCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.Quick())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, sessionInfo{
			Folder:         sess.Folder,
			RepositoryPath: sess.RepositoryPath,
			Question:       sess.Question,
			Blocks:         sess.Blocks,
			CreatedAt:      sess.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	doc, err := s.store.Load(r.Context(), folder)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
