package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalClient satisfies the playback resolver's synthesis contract against
// an in-process Manager. The returned source is a cache file path.
type LocalClient struct {
	manager *Manager
}

func NewLocalClient(m *Manager) *LocalClient {
	return &LocalClient{manager: m}
}

func (c *LocalClient) Synthesize(ctx context.Context, text string) (string, bool, error) {
	return c.manager.SpeakToFile(ctx, text)
}

// HTTPClient satisfies the same contract against a running daemon. The
// returned source is a fully qualified URL a player can fetch.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type generateAudioRequest struct {
	Text string `json:"text"`
}

type generateAudioResponse struct {
	AudioURL string `json:"audio_url"`
	CacheHit bool   `json:"cache_hit"`
}

func (c *HTTPClient) Synthesize(ctx context.Context, text string) (string, bool, error) {
	body, err := json.Marshal(generateAudioRequest{Text: text})
	if err != nil {
		return "", false, fmt.Errorf("marshal audio request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/generate-audio", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build audio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("audio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", false, fmt.Errorf("audio request status %d: %s", resp.StatusCode, string(detail))
	}
	var decoded generateAudioResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("decode audio response: %w", err)
	}
	if decoded.AudioURL == "" {
		return "", false, fmt.Errorf("audio response missing url")
	}
	if strings.HasPrefix(decoded.AudioURL, "/") {
		return c.baseURL + decoded.AudioURL, decoded.CacheHit, nil
	}
	return decoded.AudioURL, decoded.CacheHit, nil
}
