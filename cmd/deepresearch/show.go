package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/verify"
)

var (
	showJSON    bool
	showReport  bool
	showResults bool
)

var showCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job's state and report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the full job state as JSON")
	showCmd.Flags().BoolVar(&showReport, "report", false, "Print only the report")
	showCmd.Flags().BoolVar(&showResults, "results", false, "Print the per-task results log")
}

func runShow(cmd *cobra.Command, args []string) error {
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

	job, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}

	switch {
	case showJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	case showReport:
		if job.Report == "" {
			return fmt.Errorf("job %s has no report yet (status %s, stage %s)", job.ID, job.Status, job.Stage)
		}
		fmt.Println(job.Report)
		return nil
	case showResults:
		results, err := store.NodeResults(ctx, job.ID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("job %s has no synthesized tasks yet (status %s, stage %s)", job.ID, job.Status, job.Stage)
		}
		printNodeResults(os.Stdout, results)
		return nil
	}

	printJob(job)
	return nil
}

func printJob(job *model.Job) {
	bold := color.New(color.Bold)
	bold.Printf("Job %s\n", job.ID)
	fmt.Printf("Goal:       %s\n", job.Goal)
	fmt.Printf("Depth:      %s\n", job.Depth)
	if job.Domain != "" {
		fmt.Printf("Domain:     %s\n", job.Domain)
	}
	fmt.Printf("Status:     %s\n", color.New(statusColor(job.Status)).Sprint(job.Status))
	fmt.Printf("Stage:      %s\n", job.Stage)
	fmt.Printf("Reflection: %d/%d\n", job.Iteration, job.Budget)
	covered, total := job.Coverage()
	fmt.Printf("Coverage:   %d/%d tasks with findings, %d findings\n", covered, total, len(job.Findings))
	if len(job.Verified) > 0 {
		c := verify.Counts(job.Verified)
		fmt.Printf("Verified:   %d confirmed, %d disputed, %d unverified\n",
			c[model.StatusConfirmed], c[model.StatusDisputed], c[model.StatusUnverified])
	}
	if job.Partial {
		color.Yellow("Partial:    research stopped before coverage was complete")
	}
	if job.Error != "" {
		color.Red("Error:      %s", job.Error)
	}

	if len(job.Plan) > 0 {
		fmt.Println()
		bold.Println("Tasks")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPHASE\tDONE\tDEPENDS ON\tTASK")
		for _, n := range job.Plan {
			done := ""
			if job.IsCompleted(n.ID) {
				done = "✓"
			}
			deps := "-"
			if len(n.Dependencies) > 0 {
				deps = fmt.Sprint(n.Dependencies)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Phase, done, deps, truncate(n.Description, 70))
		}
		w.Flush()
	}

	if job.Report != "" {
		fmt.Println()
		bold.Println("Report")
		fmt.Println(job.Report)
	}
}

// printNodeResults writes one row per synthesized task, in the order the
// tasks finished.
func printNodeResults(out io.Writer, results []persistence.NodeResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONFIDENCE\tFINDINGS\tRECORDED\tSYNTHESIS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\t%s\n", r.NodeID, r.Confidence, len(r.Findings),
			r.RecordedAt.Local().Format("2006-01-02 15:04"), truncate(firstLine(r.Synthesis), 70))
	}
	w.Flush()
}
