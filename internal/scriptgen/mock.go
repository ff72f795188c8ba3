package scriptgen

import (
	"context"
	"fmt"
)

type mockProvider struct{}

// NewMockProvider returns a provider that emits a fixed two-block script,
// for tests and offline development.
func NewMockProvider() Provider {
	return &mockProvider{}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Available() bool { return true }

func (m *mockProvider) Analyze(_ context.Context, repositoryPath, question, _ string) (string, error) {
	return fmt.Sprintf(`[
  {"type": "text", "markdown": "## TL;DR\nMock walkthrough of %s for: %s"},
  {"type": "text", "markdown": "This script was produced by the mock analysis provider."}
]`, repositoryPath, question), nil
}
