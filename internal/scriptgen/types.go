package scriptgen

import (
	"context"
	"strings"
)

// Provider is a pluggable repository-analysis backend. Analyze runs the
// prompt against the repository and returns the raw model response, which
// may wrap the script JSON in prose.
type Provider interface {
	Name() string
	Available() bool
	Analyze(ctx context.Context, repositoryPath, question, prompt string) (string, error)
}

// extractJSONArray pulls the first top-level JSON array out of a model
// response. CLI agents tend to wrap the payload in commentary, so we take
// everything between the first '[' and the last ']'. Returns the original
// response when no array is present; the caller's JSON parse reports the
// failure.
func extractJSONArray(response string) string {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return response
	}
	return response[start : end+1]
}
