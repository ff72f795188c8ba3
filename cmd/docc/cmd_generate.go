package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/script"
	"github.com/RuliLG/docc/internal/scriptgen"
	"github.com/RuliLG/docc/internal/sessionstore"
	"github.com/RuliLG/docc/internal/synthesis"
)

var (
	generateOutput  string
	generateNoAudio bool
	generateAI      string
)

var generateCmd = &cobra.Command{
	Use:   "generate <repository> <question>",
	Short: "Generate a narrated walkthrough session for a repository question",
	Args:  cobra.ExactArgs(2),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Session folder name (default: auto-generated)")
	generateCmd.Flags().BoolVar(&generateNoAudio, "no-audio", false, "Skip narration audio generation")
	generateCmd.Flags().StringVar(&generateAI, "ai-provider", "", "Analysis provider to use (claude_code or opencode)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	repoPath, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a valid directory", repoPath)
	}
	question := args[1]

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sessionstore.Open(ctx, cfg.Sessions, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	folder := generateOutput
	if folder == "" {
		folder = store.NewFolderID(repoPath)
	}

	scripts, err := scriptgen.NewService(cfg.ScriptGen, nil, logger)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("Analyzing repository: %s\n", repoPath)
		fmt.Printf("Question: %s\n", question)
	}
	doc, err := scripts.GenerateWith(ctx, repoPath, question, generateAI)
	if err != nil {
		return err
	}

	if !generateNoAudio {
		if err := generateNarration(ctx, cfg, logger, store, folder, doc); err != nil {
			return err
		}
	}

	if err := store.Save(ctx, folder, doc); err != nil {
		return err
	}

	fmt.Printf("Session generated successfully: %s\n", store.FolderPath(folder))
	if verbose {
		fmt.Printf("Generated %d script blocks\n", doc.Len())
	}
	return nil
}

// generateNarration synthesizes block_<i>.mp3 files into the session's
// audio directory and records the filename on each block. A block whose
// synthesis fails is skipped; playback falls back to on-demand synthesis.
func generateNarration(ctx context.Context, cfg config.Config, logger *slog.Logger, store *sessionstore.Store, folder string, doc *script.Document) error {
	synthCfg := cfg.Synthesis
	synthCfg.CacheDir = store.AudioDir(folder)
	manager, err := synthesis.NewManager(synthCfg, logger)
	if err != nil {
		return err
	}
	if !manager.Available() {
		fmt.Fprintln(os.Stderr, "Warning: no synthesis provider available, skipping audio generation")
		return nil
	}

	for i := range doc.Script {
		text := doc.Script[i].Narration()
		if text == "" {
			continue
		}
		audio, _, err := manager.Speak(ctx, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not generate audio for block %d: %v\n", i, err)
			continue
		}
		filename := fmt.Sprintf("block_%d.mp3", i)
		if err := os.WriteFile(filepath.Join(store.AudioDir(folder), filename), audio, 0o644); err != nil {
			return err
		}
		doc.Script[i].AudioFile = filename
		if verbose {
			fmt.Printf("Generated audio for block %d\n", i)
		}
	}
	return nil
}
