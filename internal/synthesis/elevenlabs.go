package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

type elevenLabsProvider struct {
	apiKey  string
	voice   string
	model   string
	baseURL string
	client  *http.Client
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewElevenLabsProvider builds the ElevenLabs text-to-speech provider. The
// provider is constructed even without an API key so it can report itself
// unavailable instead of failing at wiring time.
func NewElevenLabsProvider(apiKey, voice, model string) Provider {
	if voice == "" {
		voice = "Rachel"
	}
	if model == "" {
		model = "eleven_turbo_v2_5"
	}
	return &elevenLabsProvider{
		apiKey:  apiKey,
		voice:   voice,
		model:   model,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *elevenLabsProvider) Name() string { return "elevenlabs" }

func (p *elevenLabsProvider) Available() bool { return p.apiKey != "" }

func (p *elevenLabsProvider) Speak(ctx context.Context, text string) ([]byte, error) {
	if !p.Available() {
		return nil, fmt.Errorf("elevenlabs: api key not configured")
	}
	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: p.model})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, p.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, string(detail))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}
