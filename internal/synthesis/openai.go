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

const openAISpeechURL = "https://api.openai.com/v1/audio/speech"

type openAIProvider struct {
	apiKey string
	voice  string
	url    string
	client *http.Client
}

type openAIRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// NewOpenAIProvider builds the OpenAI text-to-speech provider using the
// tts-1 model.
func NewOpenAIProvider(apiKey, voice string) Provider {
	if voice == "" {
		voice = "alloy"
	}
	return &openAIProvider{
		apiKey: apiKey,
		voice:  voice,
		url:    openAISpeechURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Available() bool { return p.apiKey != "" }

// SupportedVoices lists the voices the tts-1 model accepts.
func SupportedVoices() []string {
	return []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}
}

func (p *openAIProvider) Speak(ctx context.Context, text string) ([]byte, error) {
	if !p.Available() {
		return nil, fmt.Errorf("openai: api key not configured")
	}
	body, err := json.Marshal(openAIRequest{Model: "tts-1", Voice: p.voice, Input: text})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(detail))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read audio: %w", err)
	}
	return audio, nil
}
