package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/playback"
	"github.com/RuliLG/docc/internal/sessionstore"
	"github.com/RuliLG/docc/internal/synthesis"
)

var presentCmd = &cobra.Command{
	Use:   "present <session-folder>",
	Short: "Play back a generated session in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresent,
}

func runPresent(cmd *cobra.Command, args []string) error {
	folder := args[0]

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

	doc, err := store.Load(ctx, folder)
	if err != nil {
		return err
	}

	output, err := buildOutput(cfg)
	if err != nil {
		return err
	}
	manager, err := synthesis.NewManager(cfg.Synthesis, logger)
	if err != nil {
		return err
	}

	session, err := playback.NewSession(doc, playback.Options{
		Output:        output,
		Synth:         synthesis.NewLocalClient(manager),
		SessionBase:   cfg.Sessions.Dir,
		SessionFolder: folder,
		AutoPlay:      cfg.Playback.AutoPlay,
		AutoPlayDelay: time.Duration(cfg.Playback.AutoPlayDelayMS) * time.Millisecond,
		Rate:          cfg.Playback.Rate,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Presenting %s (%d blocks). Commands: play pause stop next prev restart rate <x> auto <on|off> status quit\n",
		folder, doc.Len())
	printBlock(session)

	return repl(ctx, session)
}

func buildOutput(cfg config.Config) (playback.Output, error) {
	if cfg.Playback.Output == "mock" {
		return playback.NewMockOutput(2 * time.Second), nil
	}
	return playback.NewExecOutput(cfg.Playback.OutputCommand)
}

func repl(ctx context.Context, session *playback.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "play", "p":
			if err := session.Play(ctx); err != nil {
				fmt.Printf("play failed: %v\n", err)
			}
		case "pause":
			if err := session.Pause(); err != nil {
				fmt.Printf("pause failed: %v\n", err)
			}
		case "stop", "s":
			session.Stop()
		case "next", "n":
			session.Next()
			printBlock(session)
		case "prev", "b":
			session.Previous()
			printBlock(session)
		case "restart":
			session.ToStart()
			printBlock(session)
		case "rate":
			if len(fields) != 2 {
				fmt.Println("usage: rate <multiplier>")
				continue
			}
			rate, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Printf("invalid rate %q\n", fields[1])
				continue
			}
			if err := session.SetRate(rate); err != nil {
				fmt.Printf("rate change failed: %v\n", err)
			}
		case "auto":
			if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
				fmt.Println("usage: auto <on|off>")
				continue
			}
			session.SetAutoPlay(fields[1] == "on")
		case "status":
			printStatus(session)
		case "quit", "q", "exit":
			return nil
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func printBlock(session *playback.Session) {
	index, block := session.CurrentBlock()
	total := session.Snapshot().Total
	fmt.Printf("\n[block %d/%d] %s\n", index+1, total, block.Type)
	if block.File != "" {
		fmt.Printf("file: %s\n", block.File)
	}
	fmt.Println(block.Markdown)
}

func printStatus(session *playback.Session) {
	snap := session.Snapshot()
	state := "idle"
	switch {
	case snap.IsPlaying:
		state = "playing"
	case snap.IsPaused:
		state = "paused"
	case snap.IsLoading:
		state = "loading"
	case snap.LastError != nil:
		state = fmt.Sprintf("error: %v", snap.LastError)
	}
	fmt.Printf("block %d/%d, %s, rate %.2fx, auto-play %v\n",
		snap.Index+1, snap.Total, state, snap.Rate, snap.AutoPlay)
}
