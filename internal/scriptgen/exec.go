package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execProvider shells out to an arbitrary analysis command. The command
// receives a JSON payload on stdin and must write the script JSON (or text
// containing it) to stdout. One analysis runs at a time.
type execProvider struct {
	cmd []string
	mu  sync.Mutex
}

type execPayload struct {
	Repository string `json:"repository"`
	Question   string `json:"question"`
	Prompt     string `json:"prompt"`
}

func NewExecProvider(command string) (Provider, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse scriptgen command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("scriptgen command empty")
	}
	return &execProvider{cmd: args}, nil
}

func (e *execProvider) Name() string { return "exec" }

func (e *execProvider) Available() bool {
	_, err := exec.LookPath(e.cmd[0])
	return err == nil
}

func (e *execProvider) Analyze(ctx context.Context, repositoryPath, question, prompt string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(execPayload{Repository: repositoryPath, Question: question, Prompt: prompt})
	if err != nil {
		return "", err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Dir = repositoryPath
	cmd.Stdin = bytes.NewReader(input)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("scriptgen exec command failed: %w", err)
	}
	return extractJSONArray(strings.TrimSpace(string(output))), nil
}
