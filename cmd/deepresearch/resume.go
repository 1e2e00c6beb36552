package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

var (
	resumeAuto  bool
	resumeWatch bool
	resumeAll   bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id...]",
	Short: "Resume paused or interrupted jobs",
	Long: `Resume one or more jobs from their last saved step.

Jobs run concurrently up to pipeline.concurrency. Completed and failed jobs
are reported as they are. --all resumes every paused or interrupted job.`,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeAuto, "auto", false, "Run unattended, skipping checkpoint questions")
	resumeCmd.Flags().BoolVar(&resumeWatch, "watch", false, "Show live progress in a terminal UI (implies --auto)")
	resumeCmd.Flags().BoolVar(&resumeAll, "all", false, "Resume every unfinished job")
}

func runResume(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !resumeAll {
		return fmt.Errorf("give at least one job id, or --all")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withJobs(cfg, resumeAuto, resumeWatch, func(ctx context.Context, a *app) ([]string, error) {
		if !resumeAll {
			return args, nil
		}
		ids, err := unfinishedJobs(ctx, a)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			printStatus("•", "No unfinished jobs", color.FgCyan)
		}
		return ids, nil
	})
}

// unfinishedJobs lists jobs that are not completed or failed.
// A job left "running" was interrupted without saving a pause.
func unfinishedJobs(ctx context.Context, a *app) ([]string, error) {
	summaries, err := a.store.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	var ids []string
	for _, s := range summaries {
		if s.Status != model.JobCompleted && s.Status != model.JobFailed {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
