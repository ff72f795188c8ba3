package scriptgen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	opencodeMaxRetries = 3
	opencodeRetryDelay = 2 * time.Second
	opencodeTimeout    = 120 * time.Second
)

// opencodeProvider drives the OpenCode CLI. OpenCode is flakier than the
// primary agent, so each analysis gets a per-attempt timeout and a few
// retries before giving up.
type opencodeProvider struct {
	command string
}

func NewOpenCodeProvider() Provider {
	return &opencodeProvider{command: "opencode"}
}

func (p *opencodeProvider) Name() string { return "opencode" }

func (p *opencodeProvider) Available() bool {
	if _, err := exec.LookPath(p.command); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, p.command, "--help").Run() == nil
}

func (p *opencodeProvider) Analyze(ctx context.Context, repositoryPath, question, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= opencodeMaxRetries; attempt++ {
		output, err := p.runOnce(ctx, repositoryPath, prompt)
		if err == nil {
			return output, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < opencodeMaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(opencodeRetryDelay):
			}
		}
	}
	return "", fmt.Errorf("opencode cli failed after %d attempts: %w", opencodeMaxRetries, lastErr)
}

func (p *opencodeProvider) runOnce(ctx context.Context, repositoryPath, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opencodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, p.command, "run", prompt)
	cmd.Dir = repositoryPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("opencode cli timed out")
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("opencode cli failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("opencode cli failed: %w", err)
	}
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return "", fmt.Errorf("opencode returned empty response")
	}
	return extractJSONArray(output), nil
}
