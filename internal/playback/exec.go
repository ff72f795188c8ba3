package playback

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	shellwords "github.com/mattn/go-shellwords"
)

// execOutput plays audio by spawning an external player process per start.
// The configured command is expected to accept an mpv-style --speed flag and
// a trailing URL or file path, e.g. "mpv --no-video --really-quiet".
type execOutput struct {
	argv []string
}

func NewExecOutput(command string) (Output, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command empty")
	}
	return &execOutput{argv: args}, nil
}

func (o *execOutput) Open(source string) (Handle, error) {
	if source == "" {
		return nil, fmt.Errorf("empty audio source")
	}
	return &execHandle{argv: o.argv, source: source, rate: 1.0}, nil
}

type execHandle struct {
	mu      sync.Mutex
	argv    []string
	source  string
	rate    float64
	cmd     *exec.Cmd
	done    chan error
	paused  bool
	stopped bool
}

func (h *execHandle) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd != nil {
		return fmt.Errorf("player for %s already running", h.source)
	}

	args := append([]string{}, h.argv[1:]...)
	if h.rate != 1.0 {
		args = append(args, fmt.Sprintf("--speed=%.2f", h.rate))
	}
	args = append(args, h.source)

	cmd := exec.Command(h.argv[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	h.cmd = cmd
	h.paused = false
	h.stopped = false
	h.done = make(chan error, 1)

	done := h.done
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		stopped := h.stopped
		h.cmd = nil
		h.paused = false
		h.mu.Unlock()
		switch {
		case stopped:
			done <- ErrStopped
		case err != nil:
			done <- fmt.Errorf("player exited: %w", err)
		default:
			done <- nil
		}
	}()
	return nil
}

func (h *execHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.paused {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause player: %w", err)
	}
	h.paused = true
	return nil
}

func (h *execHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || !h.paused {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resume player: %w", err)
	}
	h.paused = false
	return nil
}

func (h *execHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil {
		return nil
	}
	h.stopped = true
	if h.paused {
		_ = h.cmd.Process.Signal(syscall.SIGCONT)
	}
	return h.cmd.Process.Kill()
}

func (h *execHandle) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// A running process player applies rate at spawn time; a live change
	// takes effect on the next start.
	h.rate = rate
	return nil
}

func (h *execHandle) Done() <-chan error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}
