package synthesis

import "context"

// Provider turns narration text into encoded audio (mp3).
type Provider interface {
	// Name identifies the provider in config, logs and API responses.
	Name() string
	// Available reports whether the provider is configured and usable.
	Available() bool
	// Speak synthesizes text and returns the encoded audio bytes.
	Speak(ctx context.Context, text string) ([]byte, error)
}
