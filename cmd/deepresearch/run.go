package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guangtouwangba/open-deep-research/internal/config"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/orchestrator"
	"github.com/guangtouwangba/open-deep-research/internal/phase"
)

var (
	runDepth  string
	runBudget int
	runDomain string
	runAuto   bool
	runWatch  bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Start a research job",
	Long: `Start a research job for a goal and run it to completion.

The goal is planned into tasks, each task is researched, critiqued and
verified, reflection adds tasks for coverage gaps, and the report is
printed when the job completes.

With checkpoints enabled (the default) you are asked after critique and
after verification of every task. --auto and --watch skip the questions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDepth, "depth", "", "Research depth: quick, balanced or comprehensive (default from config)")
	runCmd.Flags().IntVar(&runBudget, "budget", 0, "Reflection iterations (default from config)")
	runCmd.Flags().StringVar(&runDomain, "domain", "", "Domain name, or auto to detect from the goal (default from config)")
	runCmd.Flags().BoolVar(&runAuto, "auto", false, "Run unattended, skipping checkpoint questions")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show live progress in a terminal UI (implies --auto)")
}

// jobRequest builds the engine request from the goal, flags and config.
// Empty flag values and a nil budget fall back to config.
func jobRequest(cfg *config.Config, goal, depthFlag string, budgetFlag *int, domainFlag string) (orchestrator.Request, error) {
	depthName := cfg.Pipeline.DefaultDepth
	if depthFlag != "" {
		depthName = depthFlag
	}
	depth, err := model.ParseDepth(depthName)
	if err != nil {
		return orchestrator.Request{}, err
	}

	budget := cfg.Pipeline.Budget
	if budgetFlag != nil {
		budget = *budgetFlag
	}
	if budget < 0 {
		return orchestrator.Request{}, fmt.Errorf("--budget must be >= 0, got %d", budget)
	}

	dom := cfg.Pipeline.Domain
	if domainFlag != "" {
		dom = domainFlag
	}
	if dom == "auto" {
		dom = ""
	}

	return orchestrator.Request{Goal: goal, Depth: depth, Budget: budget, Domain: dom}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return fmt.Errorf("goal must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var budget *int
	if cmd.Flags().Changed("budget") {
		budget = &runBudget
	}
	req, err := jobRequest(cfg, goal, runDepth, budget, runDomain)
	if err != nil {
		return err
	}

	return withJobs(cfg, runAuto, runWatch, func(ctx context.Context, a *app) ([]string, error) {
		job, err := a.engine.Create(ctx, req)
		if err != nil {
			return nil, err
		}
		printStatus("•", fmt.Sprintf("Job %s: %s (%s, budget %d)", job.ID, job.Goal, job.Depth, job.Budget), color.FgCyan)
		return []string{job.ID}, nil
	})
}

// withJobs sets up signals, the checkpoint gate and the app, asks pick for
// the job ids to run, and runs them.
func withJobs(cfg *config.Config, auto, watch bool, pick func(ctx context.Context, a *app) ([]string, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	var gate phase.Gate
	if cfg.Pipeline.Checkpoints && !auto && !watch {
		g, stopGate := newCheckpointGate(ctx, askCheckpoint, interrupt)
		defer stopGate()
		gate = g
	}

	a, err := newApp(ctx, cfg, gate)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := pick(ctx, a)
	if err != nil {
		return err
	}

	results := runJobs(ctx, a, ids, runOptions{watch: watch, stop: stop})
	return reportResults(results, len(ids) == 1)
}
