package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execProvider shells out to an arbitrary synthesis command. The command
// receives the narration text on stdin and must write encoded audio to
// stdout. One synthesis runs at a time.
type execProvider struct {
	cmd []string
	mu  sync.Mutex
}

func NewExecProvider(command string) (Provider, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execProvider{cmd: args}, nil
}

func (e *execProvider) Name() string { return "exec" }

func (e *execProvider) Available() bool {
	_, err := exec.LookPath(e.cmd[0])
	return err == nil
}

func (e *execProvider) Speak(ctx context.Context, text string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("synthesis command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("synthesis command failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("synthesis command produced no audio")
	}
	return stdout.Bytes(), nil
}
