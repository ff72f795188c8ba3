package scriptgen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// claudeProvider drives the Claude Code CLI. The prompt is passed with -p
// and the process runs from inside the repository so the agent sees the
// codebase as its working directory.
type claudeProvider struct {
	command string
}

func NewClaudeProvider() Provider {
	return &claudeProvider{command: "claude"}
}

func (p *claudeProvider) Name() string { return "claude_code" }

func (p *claudeProvider) Available() bool {
	if _, err := exec.LookPath(p.command); err != nil {
		return false
	}
	return exec.Command(p.command, "--version").Run() == nil
}

func (p *claudeProvider) Analyze(ctx context.Context, repositoryPath, question, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, p.command, "-p", prompt, "--no-stream")
	cmd.Dir = repositoryPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("claude cli failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("claude cli failed: %w", err)
	}
	return extractJSONArray(strings.TrimSpace(stdout.String())), nil
}
