package synthesis

import (
	"context"
	"time"
)

type mockProvider struct {
	latency time.Duration
}

// NewMockProvider returns a provider that emits a tiny fixed payload after
// an optional latency, for tests and offline development.
func NewMockProvider(latency time.Duration) Provider {
	return &mockProvider{latency: latency}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Available() bool { return true }

func (m *mockProvider) Speak(ctx context.Context, text string) ([]byte, error) {
	if m.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.latency):
		}
	}
	// A minimal MPEG frame header followed by the text keeps payloads
	// distinguishable per input without shipping real audio fixtures.
	payload := append([]byte{0xFF, 0xFB, 0x90, 0x00}, []byte(text)...)
	return payload, nil
}
