package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/guangtouwangba/open-deep-research/internal/config"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/orchestrator"
	"github.com/guangtouwangba/open-deep-research/internal/tui"
)

// tuiExitTimeout bounds how long shutdown waits for the TUI to exit.
const tuiExitTimeout = 10 * time.Second

// runOptions control how runJobs drives the engine.
type runOptions struct {
	watch bool               // Show the TUI while jobs run
	stop  context.CancelFunc // Restores default signal handling
}

// runJobs runs ids on the engine and waits for them. A signal, an aborted
// checkpoint or quitting the TUI pauses the jobs: in-flight calls finish
// and the paused state is saved before runJobs returns.
func runJobs(ctx context.Context, a *app, ids []string, opts runOptions) []orchestrator.Result {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		program *tea.Program
		tuiDone chan error // nil, and never ready, without --watch
	)
	if opts.watch {
		// Log output corrupts the alt screen
		original := log.Writer()
		log.SetOutput(io.Discard)
		defer log.SetOutput(original)

		// Subscribe before any job emits
		program = tea.NewProgram(tui.New(a.bus, a.cfg, config.GlobalPath(), config.ProjectPath()), tea.WithAltScreen())
		tuiDone = make(chan error, 1)
		go func() {
			_, err := program.Run()
			tuiDone <- err
		}()
	}

	done := make(chan []orchestrator.Result, 1)
	go func() {
		done <- a.engine.RunMany(runCtx, ids)
	}()

	select {
	case results := <-done:
		if program != nil {
			// Leave the final state on screen until the user quits
			program.Send(tui.DoneMsg{})
			if err := <-tuiDone; err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		}
		return results

	case err := <-tuiDone:
		if err != nil {
			log.Printf("TUI exit error: %v", err)
		}
		program = nil
		cancel()

	case <-runCtx.Done():
		// Call stop() to restore default signal handling (double Ctrl+C = force exit)
		if opts.stop != nil {
			opts.stop()
		}
	}

	if program != nil {
		program.Quit()
		select {
		case err := <-tuiDone:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-time.After(tuiExitTimeout):
			log.Println("TUI shutdown timeout exceeded")
		}
	}

	printStatus("⚠", "Pausing: waiting for in-flight calls to finish (Ctrl+C again to force quit)", color.FgYellow)
	return awaitPause(a, done, a.cfg.CallTimeout())
}

// awaitPause waits for the engine to save paused jobs. Past grace, tracked
// subprocesses are killed so their calls fail fast.
func awaitPause(a *app, done <-chan []orchestrator.Result, grace time.Duration) []orchestrator.Result {
	select {
	case results := <-done:
		return results
	case <-time.After(grace):
	}

	log.Println("Shutdown timeout exceeded, killing subprocesses")
	if err := a.pm.KillAll(); err != nil {
		log.Printf("Error killing subprocesses: %v", err)
	}

	select {
	case results := <-done:
		return results
	case <-time.After(tuiExitTimeout):
		log.Println("Jobs did not stop, forcing exit")
		return nil
	}
}

// reportResults prints one line per job, and the report of each completed
// job when showReport is set. It returns an error when any job failed.
func reportResults(results []orchestrator.Result, showReport bool) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil && r.Job == nil {
			failed++
			printStatus("✗", fmt.Sprintf("%s: %v", r.JobID, r.Err), color.FgRed)
			continue
		}
		job := r.Job
		switch job.Status {
		case model.JobCompleted:
			msg := fmt.Sprintf("%s completed: %d/%d tasks", job.ID, len(job.Completed), len(job.Plan))
			if job.Partial {
				msg += " (partial coverage)"
			}
			printStatus("✓", msg, color.FgGreen)
			if showReport {
				fmt.Printf("\n%s\n\n", job.Report)
			}
		case model.JobPaused:
			if job.Error != "" {
				failed++
				printStatus("⏸", fmt.Sprintf("%s stopped at %s: %s. Resume with: deepresearch resume %s", job.ID, job.Stage, job.Error, job.ID), color.FgYellow)
				continue
			}
			printStatus("⏸", fmt.Sprintf("%s paused at %s. Resume with: deepresearch resume %s", job.ID, job.Stage, job.ID), color.FgYellow)
		case model.JobFailed:
			failed++
			printStatus("✗", fmt.Sprintf("%s failed at %s: %s", job.ID, job.Stage, job.Error), color.FgRed)
		default:
			printStatus("•", fmt.Sprintf("%s is %s", job.ID, job.Status), statusColor(job.Status))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}
