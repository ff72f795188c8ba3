package scriptgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/protocol"
	"github.com/RuliLG/docc/internal/script"
)

const defaultSystemPrompt = `You are an expert code analyst. Analyze the repository and answer questions about it.

Respond with a valid JSON array following this structure:
[
    {"type": "text", "markdown": "## TL;DR\n\nBrief summary"},
    {"type": "code", "file": "/path/to/file", "relevant_lines": [{"from": 10, "to": 15}], "markdown": "Explanation"}
]`

// Events receives generation progress. A nil implementation disables
// publishing.
type Events interface {
	Publish(subject string, payload any) error
}

// Service turns a repository question into a narration script by running
// CLI analysis agents in preference order and parsing the first usable
// response.
type Service struct {
	cfg          config.ScriptGenConfig
	providers    []Provider
	events       Events
	systemPrompt string
	logger       *slog.Logger
}

func NewService(cfg config.ScriptGenConfig, events Events, logger *slog.Logger) (*Service, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:          cfg,
		providers:    providers,
		events:       events,
		systemPrompt: loadSystemPrompt(cfg.PromptPath),
		logger:       logger.With(slog.String("component", "scriptgen")),
	}, nil
}

func buildProviders(cfg config.ScriptGenConfig) ([]Provider, error) {
	switch cfg.Provider {
	case "mock":
		return []Provider{NewMockProvider()}, nil
	case "exec":
		p, err := NewExecProvider(cfg.Command)
		if err != nil {
			return nil, err
		}
		return []Provider{p}, nil
	}

	providers := []Provider{NewClaudeProvider(), NewOpenCodeProvider()}
	if cfg.Command != "" {
		p, err := NewExecProvider(cfg.Command)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func loadSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultSystemPrompt
	}
	return string(data)
}

// AvailableProviders lists every provider that reports itself usable, in
// preference order.
func (s *Service) AvailableProviders() []string {
	var names []string
	for _, p := range s.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Generate produces a script document for the question using the
// configured provider preference.
func (s *Service) Generate(ctx context.Context, repositoryPath, question string) (*script.Document, error) {
	return s.GenerateWith(ctx, repositoryPath, question, "")
}

// GenerateWith is Generate with a per-request provider preference, used by
// the HTTP API. Providers are tried in preference order; a provider that
// errors or returns unparseable output is skipped in favor of the next one.
func (s *Service) GenerateWith(ctx context.Context, repositoryPath, question, preferred string) (*script.Document, error) {
	if s.cfg.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutS)*time.Second)
		defer cancel()
	}

	prompt := s.buildPrompt(repositoryPath, question)
	tried := 0
	var lastErr error

	for _, provider := range s.providersToTry(preferred) {
		if !provider.Available() {
			continue
		}
		tried++
		s.logger.Info("analyzing repository",
			slog.String("provider", provider.Name()),
			slog.String("repository", repositoryPath))
		s.publishProgress(repositoryPath, question, protocol.StageAnalyzing, provider.Name())

		response, err := provider.Analyze(ctx, repositoryPath, question, prompt)
		if err != nil {
			s.logger.Warn("analysis failed", slog.String("provider", provider.Name()), slogError(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if response == "" {
			s.logger.Warn("empty analysis response", slog.String("provider", provider.Name()))
			continue
		}

		s.publishProgress(repositoryPath, question, protocol.StageParsing, provider.Name())
		blocks, err := parseResponse(response)
		if err != nil {
			s.logger.Warn("unparseable analysis response", slog.String("provider", provider.Name()), slogError(err))
			lastErr = err
			continue
		}

		doc := &script.Document{
			RepositoryPath: repositoryPath,
			Question:       question,
			Script:         blocks,
		}
		s.publishDone(doc, provider.Name())
		return doc, nil
	}

	s.publishProgress(repositoryPath, question, protocol.StageFailed, "")
	if tried == 0 {
		return nil, fmt.Errorf("no analysis providers available, install the claude or opencode cli")
	}
	return nil, fmt.Errorf("all analysis providers failed: %w", lastErr)
}

// providersToTry narrows the provider list when the request or config
// names a specific one; unknown names fall back to the full list.
func (s *Service) providersToTry(preferred string) []Provider {
	if preferred == "" {
		preferred = s.cfg.Provider
	}
	if preferred == "" || preferred == "auto" {
		return s.providers
	}
	for _, p := range s.providers {
		if p.Name() == preferred {
			return []Provider{p}
		}
	}
	return s.providers
}

func (s *Service) buildPrompt(repositoryPath, question string) string {
	return fmt.Sprintf(`%s

## Current Task
Repository: %s
Question: %s

Analyze this repository and provide a comprehensive answer to the question above.`,
		s.systemPrompt, repositoryPath, question)
}

func parseResponse(response string) ([]script.Block, error) {
	var blocks []script.Block
	if err := json.Unmarshal([]byte(response), &blocks); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("analysis response contained no blocks")
	}
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return blocks, nil
}

func (s *Service) publishProgress(repository, question, stage, provider string) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(protocol.SubjectScriptProgress, protocol.ScriptProgress{
		Repository: repository,
		Question:   question,
		Stage:      stage,
		Provider:   provider,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish progress", slogError(err))
	}
}

func (s *Service) publishDone(doc *script.Document, provider string) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(protocol.SubjectScriptDone, protocol.ScriptDone{
		Repository: doc.RepositoryPath,
		Question:   doc.Question,
		Blocks:     doc.Len(),
		Provider:   provider,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish completion", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
