package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(ctx, listLimit)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No jobs yet. Run 'deepresearch run <goal>' to start one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tDEPTH\tTASKS\tREFLECT\tSTATUS\tGOAL")
	for _, s := range summaries {
		status := color.New(statusColor(s.Status)).Sprint(s.Status)
		if s.Partial {
			status += " (partial)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d/%d\t%s\t%s\n",
			s.ID,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.Depth,
			s.Completed, s.Nodes,
			s.Iteration, s.Budget,
			status,
			truncate(s.Goal, 60),
		)
	}
	return w.Flush()
}
