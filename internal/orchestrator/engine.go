// Package orchestrator drives jobs through planning, research, verification
// and reporting, pausing and resuming them through the persistence store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/domain"
	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/model"
	"github.com/guangtouwangba/open-deep-research/internal/persistence"
	"github.com/guangtouwangba/open-deep-research/internal/phase"
	"github.com/guangtouwangba/open-deep-research/internal/planner"
	"github.com/guangtouwangba/open-deep-research/internal/reflection"
	"github.com/guangtouwangba/open-deep-research/internal/report"
	"github.com/guangtouwangba/open-deep-research/internal/scheduler"
	"github.com/guangtouwangba/open-deep-research/internal/search"
	"github.com/guangtouwangba/open-deep-research/internal/verify"
)

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Store     persistence.Store // Required
	Generator backend.Backend   // Required
	Searcher  search.Searcher   // nil disables search
	Domains   *domain.Registry  // nil uses the built-in domains
	Gate      phase.Gate        // nil runs unattended
	Bus       *events.EventBus  // Optional

	Concurrency      int           // Jobs run at once by RunMany (default 2)
	CallTimeout      time.Duration // Bound on one in-flight collaborator call
	DedupThreshold   float64
	OverlapThreshold float64
	MinSources       int
	MaxClaims        int
	CouncilTopics    []string
}

// Request describes a new job.
type Request struct {
	Goal   string
	Depth  model.Depth
	Budget int    // Reflection iterations
	Domain string // Domain name, or "" / "auto" to detect from the goal
}

// Result is the outcome of one job run by RunMany.
type Result struct {
	JobID string
	Job   *model.Job
	Err   error
}

// Engine runs jobs. One job is processed by one sequential loop; separate
// jobs may run concurrently.
type Engine struct {
	store       persistence.Store
	domains     *domain.Registry
	bus         *events.EventBus
	concurrency int
	callTimeout time.Duration

	planner   *planner.Builder
	scheduler *scheduler.Scheduler
	reflector *reflection.Reflector
	verifier  *verify.Engine
	assembler *report.Assembler
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil || cfg.Generator == nil {
		return nil, errors.New("engine requires a store and a generator")
	}
	if cfg.Searcher == nil {
		cfg.Searcher = search.Unavailable{}
	}
	if cfg.Domains == nil {
		reg, err := domain.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("building domain registry: %w", err)
		}
		cfg.Domains = reg
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = phase.DefaultCallTimeout
	}

	checker := verify.NewClaimChecker(cfg.Generator, cfg.Searcher, cfg.MaxClaims, cfg.OverlapThreshold, cfg.CallTimeout)
	machine := phase.New(cfg.Generator, cfg.Searcher, checker, cfg.Store, cfg.Domains, phase.Options{
		Gate:          cfg.Gate,
		Bus:           cfg.Bus,
		CallTimeout:   cfg.CallTimeout,
		CouncilTopics: cfg.CouncilTopics,
	})

	dedup := cfg.DedupThreshold
	if dedup <= 0 {
		dedup = planner.DefaultDedupThreshold
	}

	return &Engine{
		store:       cfg.Store,
		domains:     cfg.Domains,
		bus:         cfg.Bus,
		concurrency: cfg.Concurrency,
		callTimeout: cfg.CallTimeout,
		planner:     planner.NewBuilder(cfg.Generator, dedup),
		scheduler:   scheduler.New(machine, cfg.Store, cfg.Bus),
		reflector:   reflection.NewReflector(cfg.Generator, dedup, cfg.CallTimeout),
		verifier:    verify.NewEngine(cfg.OverlapThreshold, cfg.MinSources),
		assembler:   report.NewAssembler(cfg.Generator, cfg.CallTimeout),
	}, nil
}

// Start creates a job for req and runs it.
func (e *Engine) Start(ctx context.Context, req Request) (*model.Job, error) {
	job, err := e.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, job.ID)
}

// Create persists a new pending job without running it.
func (e *Engine) Create(ctx context.Context, req Request) (*model.Job, error) {
	if req.Depth == "" {
		req.Depth = model.DepthBalanced
	}
	if req.Budget < 0 {
		return nil, fmt.Errorf("budget must not be negative, got %d", req.Budget)
	}

	id, err := e.store.Create(ctx, req.Goal, req.Depth, req.Budget)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	job, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Domain != "" {
		job.Domain = req.Domain
		if err := e.store.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("saving job %s: %w", id, err)
		}
	}
	return job, nil
}

// Run loads job id and drives it from its persisted stage.
//
// An interrupt (ctx cancellation) pauses the job and returns it with a nil
// error. A failed job-critical step marks the job failed, persists the error
// text and returns the error. Any other error, such as a store failure, pauses
// the job so it can be resumed, and is returned. Jobs already completed or
// failed are returned as loaded.
func (e *Engine) Run(ctx context.Context, id string) (*model.Job, error) {
	// A job queued behind an interrupt still loads, so it is paused rather than lost
	job, err := e.store.Load(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	start := time.Now()
	resumed := job.Status != model.JobPending
	job.Status = model.JobRunning
	job.Error = ""
	if err := e.save(ctx, job); err != nil {
		return job, err
	}
	e.bus.Emit(events.JobStartedEvent{ID: job.ID, Goal: job.Goal, Depth: job.Depth, Resumed: resumed, Timestamp: start})

	err = e.drive(ctx, job)
	switch {
	case err == nil:
		job.Status = model.JobCompleted
		if err := e.save(ctx, job); err != nil {
			return job, err
		}
		e.bus.Emit(events.JobCompletedEvent{ID: job.ID, Partial: job.Partial, Duration: time.Since(start), Timestamp: time.Now()})
		return job, nil

	case errors.Is(err, model.ErrInterrupted):
		job.Status = model.JobPaused
		if serr := e.save(ctx, job); serr != nil {
			return job, serr
		}
		e.bus.Emit(events.JobPausedEvent{ID: job.ID, Stage: job.Stage, Timestamp: time.Now()})
		return job, nil

	case !model.IsCritical(err):
		log.Printf("ERROR: job %s stopped at %s, pausing: %v", job.ID, job.Stage, err)
		job.Status = model.JobPaused
		job.Error = err.Error()
		if serr := e.save(ctx, job); serr != nil {
			log.Printf("ERROR: failed to persist pause of job %s: %v", job.ID, serr)
		}
		e.bus.Emit(events.JobPausedEvent{ID: job.ID, Stage: job.Stage, Timestamp: time.Now()})
		return job, err

	default:
		log.Printf("ERROR: job %s failed at %s: %v", job.ID, job.Stage, err)
		job.Status = model.JobFailed
		job.Error = err.Error()
		if serr := e.save(ctx, job); serr != nil {
			log.Printf("ERROR: failed to persist failure of job %s: %v", job.ID, serr)
		}
		e.bus.Emit(events.JobFailedEvent{ID: job.ID, Err: err, Duration: time.Since(start), Timestamp: time.Now()})
		return job, err
	}
}

// RunMany runs the given jobs with bounded concurrency. Each job's outcome is
// reported in its Result; one job failing does not stop the others.
func (e *Engine) RunMany(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			job, err := e.Run(ctx, id)
			results[i] = Result{JobID: id, Job: job, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// drive advances job stage by stage until it is done. Every stage change is
// saved before the next stage starts.
func (e *Engine) drive(ctx context.Context, job *model.Job) error {
	for job.Stage != model.StageDone {
		if ctx.Err() != nil {
			return fmt.Errorf("job %s at %s: %w", job.ID, job.Stage, model.ErrInterrupted)
		}

		var next model.Stage
		var err error
		switch job.Stage {
		case model.StagePlanning:
			next, err = model.StageResearching, e.plan(ctx, job)
		case model.StageResearching:
			next, err = model.StageVerifying, e.research(ctx, job)
		case model.StageVerifying:
			next, err = model.StageReporting, e.verify(job)
		case model.StageReporting:
			next, err = model.StageDone, e.report(ctx, job)
		default:
			return fmt.Errorf("job %s: unknown stage %q", job.ID, job.Stage)
		}
		if err != nil {
			return err
		}

		job.Stage = next
		if err := e.save(ctx, job); err != nil {
			return err
		}
		e.bus.Emit(events.JobStageEvent{ID: job.ID, Stage: job.Stage, Timestamp: time.Now()})
	}
	return nil
}

func (e *Engine) plan(ctx context.Context, job *model.Job) error {
	dom, err := e.domains.Resolve(job.Domain, job.Goal)
	if err != nil {
		log.Printf("WARNING: job %s: %v, using %s", job.ID, err, domain.General)
		dom, _ = e.domains.Get(domain.General)
	}
	job.Domain = dom.Name

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
	defer cancel()

	nodes, err := e.planner.Build(callCtx, job.Goal, job.Depth, dom)
	if err != nil {
		return err
	}
	job.Plan = nodes
	job.Cursor = 0
	return nil
}

// research alternates scheduling passes and reflection passes until
// reflection.Next says stop.
func (e *Engine) research(ctx context.Context, job *model.Job) error {
	for {
		if err := e.scheduler.Pass(ctx, job); err != nil {
			return err
		}

		if job.Iteration < job.Budget {
			if ctx.Err() != nil {
				return fmt.Errorf("job %s before reflection: %w", job.ID, model.ErrInterrupted)
			}
			if _, err := e.reflector.Reflect(ctx, job); err != nil {
				return err
			}
			if err := e.save(ctx, job); err != nil {
				return err
			}
			e.progress(job)
		}

		v := reflection.Next(job, job.Reflection, scheduler.HasPending(job), scheduler.Unresolved(job))
		if !v.Continue {
			job.Partial = v.Partial
			return nil
		}
	}
}

func (e *Engine) verify(job *model.Job) error {
	job.Verified = e.verifier.Verify(job.Findings)
	job.Conflicts = e.verifier.Conflicts(job.Verified)
	return nil
}

func (e *Engine) report(ctx context.Context, job *model.Job) error {
	rep, err := e.assembler.Assemble(ctx, job)
	if err != nil {
		return err
	}
	job.Report = rep.Text
	job.Sections = rep.Sections
	return nil
}

func (e *Engine) save(ctx context.Context, job *model.Job) error {
	// Saves run even after cancellation so the paused state is always flushed
	if err := e.store.Save(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

func (e *Engine) progress(job *model.Job) {
	covered, total := job.Coverage()
	e.bus.Emit(events.JobProgressEvent{
		ID:        job.ID,
		Total:     total,
		Completed: len(job.Completed),
		Deferred:  len(job.Deferred),
		Covered:   covered,
		Iteration: job.Iteration,
		Budget:    job.Budget,
		Timestamp: time.Now(),
	})
}
