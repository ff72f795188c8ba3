package readiness

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/RuliLG/docc/internal/config"
)

// CLIStatus describes one analysis CLI agent.
type CLIStatus struct {
	Installed  bool   `json:"installed"`
	Configured bool   `json:"configured"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TTSStatus describes one synthesis backend.
type TTSStatus struct {
	APIKeySet  bool   `json:"api_key_set"`
	Configured bool   `json:"configured"`
	Accessible bool   `json:"accessible"`
	Error      string `json:"error,omitempty"`
}

// Report is the full readiness picture with per-service detail and
// actionable recommendations.
type Report struct {
	SystemReady     bool            `json:"system_ready"`
	RequirementsMet map[string]bool `json:"requirements_met"`
	Services        map[string]any  `json:"services"`
	Recommendations []string        `json:"recommendations"`
}

// QuickReport only answers whether the minimum requirements are met,
// without touching the network.
type QuickReport struct {
	SystemReady bool `json:"system_ready"`
	HasAICLI    bool `json:"has_ai_cli"`
	HasTTS      bool `json:"has_tts"`
}

// Checker probes the host for the CLI agents and synthesis credentials the
// daemon needs. lookPath and runVersion are injectable for tests.
type Checker struct {
	cfg        config.SynthesisConfig
	client     *http.Client
	lookPath   func(name string) (string, error)
	runVersion func(ctx context.Context, name string, arg string) (string, error)
}

func NewChecker(cfg config.SynthesisConfig) *Checker {
	return &Checker{
		cfg:        cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
		lookPath:   exec.LookPath,
		runVersion: runVersion,
	}
}

func runVersion(ctx context.Context, name, arg string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, arg).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Quick checks requirements without any network or subprocess probes
// beyond PATH lookups.
func (c *Checker) Quick() QuickReport {
	_, claudeErr := c.lookPath("claude")
	_, opencodeErr := c.lookPath("opencode")
	hasCLI := claudeErr == nil || opencodeErr == nil
	hasTTS := c.cfg.ElevenLabsKey != "" || c.cfg.OpenAIKey != ""
	return QuickReport{
		SystemReady: hasCLI && hasTTS,
		HasAICLI:    hasCLI,
		HasTTS:      hasTTS,
	}
}

// Check runs the comprehensive readiness probe: CLI versions and live API
// credential checks.
func (c *Checker) Check(ctx context.Context) Report {
	claude := c.checkCLI(ctx, "claude")
	opencode := c.checkCLI(ctx, "opencode")
	elevenlabs := c.checkElevenLabs(ctx)
	openai := c.checkOpenAI(ctx)

	hasCLI := (claude.Installed && claude.Configured) || (opencode.Installed && opencode.Configured)
	hasTTS := (elevenlabs.Configured && elevenlabs.Accessible) || (openai.Configured && openai.Accessible)

	report := Report{
		SystemReady: hasCLI && hasTTS,
		RequirementsMet: map[string]bool{
			"ai_cli":      hasCLI,
			"tts_service": hasTTS,
		},
		Services: map[string]any{
			"claude_code": claude,
			"opencode":    opencode,
			"elevenlabs":  elevenlabs,
			"openai_tts":  openai,
		},
		Recommendations: []string{},
	}

	if !hasCLI {
		switch {
		case !claude.Installed && !opencode.Installed:
			report.Recommendations = append(report.Recommendations,
				"Install either Claude Code (recommended) or OpenCode CLI tool")
		case claude.Installed && !claude.Configured:
			report.Recommendations = append(report.Recommendations,
				"Configure Claude Code by running: claude login")
		case opencode.Installed && !opencode.Configured:
			report.Recommendations = append(report.Recommendations,
				"Configure OpenCode by setting up your API credentials")
		}
	}
	if !hasTTS {
		switch {
		case !elevenlabs.APIKeySet && !openai.APIKeySet:
			report.Recommendations = append(report.Recommendations,
				"Set either ELEVENLABS_API_KEY or OPENAI_API_KEY environment variable")
		case elevenlabs.APIKeySet && !elevenlabs.Accessible:
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Fix ElevenLabs configuration: %s", elevenlabs.Error))
		case openai.APIKeySet && !openai.Accessible:
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Fix OpenAI configuration: %s", openai.Error))
		}
	}
	return report
}

func (c *Checker) checkCLI(ctx context.Context, name string) CLIStatus {
	var status CLIStatus
	if _, err := c.lookPath(name); err != nil {
		status.Error = fmt.Sprintf("%s not found in PATH", name)
		return status
	}
	status.Installed = true

	version, err := c.runVersion(ctx, name, "--version")
	if err != nil {
		status.Error = fmt.Sprintf("could not get %s version: %v", name, err)
		return status
	}
	status.Version = version
	status.Configured = true
	return status
}

func (c *Checker) checkElevenLabs(ctx context.Context) TTSStatus {
	var status TTSStatus
	if c.cfg.ElevenLabsKey == "" {
		status.Error = "ElevenLabs API key not configured"
		return status
	}
	status.APIKeySet = true
	status.Configured = true

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.elevenlabs.io/v1/user", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	req.Header.Set("xi-api-key", c.cfg.ElevenLabsKey)

	resp, err := c.client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("could not connect to ElevenLabs API: %v", err)
		return status
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		status.Accessible = true
	case http.StatusUnauthorized:
		status.Error = "Invalid ElevenLabs API key"
	default:
		status.Error = fmt.Sprintf("ElevenLabs API returned status %d", resp.StatusCode)
	}
	return status
}

func (c *Checker) checkOpenAI(ctx context.Context) TTSStatus {
	var status TTSStatus
	if c.cfg.OpenAIKey == "" {
		status.Error = "OpenAI API key not configured"
		return status
	}
	status.APIKeySet = true
	status.Configured = true

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("could not connect to OpenAI API: %v", err)
		return status
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		status.Accessible = true
	case http.StatusUnauthorized:
		status.Error = "Invalid OpenAI API key"
	default:
		status.Error = fmt.Sprintf("OpenAI API returned status %d", resp.StatusCode)
	}
	return status
}
