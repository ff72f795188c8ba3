package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RuliLG/docc/internal/sessionstore"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List generated sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := sessionstore.Open(ctx, cfg.Sessions, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FOLDER\tCREATED\tBLOCKS\tQUESTION")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			s.Folder, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Blocks, s.Question)
	}
	return w.Flush()
}
