// Package scheduler orders a job's plan and walks it with a persisted cursor,
// handing each ready node to a Producer.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/events"
	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// Producer runs one ready node to completion and returns its findings.
// It must be idempotent for nodes it has already finished.
type Producer interface {
	Produce(ctx context.Context, job *model.Job, node *model.TaskNode) ([]model.Finding, error)
}

// Saver persists job state.
type Saver interface {
	Save(ctx context.Context, job *model.Job) error
}

// Scheduler dispatches ready nodes in plan order. It never changes node phases.
type Scheduler struct {
	producer Producer
	store    Saver
	bus      *events.EventBus
}

// New creates a Scheduler. bus may be nil.
func New(producer Producer, store Saver, bus *events.EventBus) *Scheduler {
	return &Scheduler{producer: producer, store: store, bus: bus}
}

// Pass runs one scheduling pass over job.
//
// Deferred nodes whose dependencies have since completed are retried first,
// repeating while that makes progress. Then the plan is walked from the
// cursor to the end: completed nodes are skipped, nodes with unmet
// dependencies are deferred, and ready nodes are produced and marked
// completed. Deferred nodes are retried once more after the walk, so a node
// whose dependency sits later in the plan still runs in the same pass.
// State is saved after each node. Cancellation is checked before each node
// and reported as model.ErrInterrupted.
func (s *Scheduler) Pass(ctx context.Context, job *model.Job) error {
	if err := s.retryDeferred(ctx, job); err != nil {
		return err
	}

	for job.Cursor < len(job.Plan) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scheduling %s: %w", job.ID, model.ErrInterrupted)
		}

		node := job.Plan[job.Cursor]
		switch {
		case job.IsCompleted(node.ID):
			job.Cursor++
			continue

		case !job.Ready(node):
			job.Defer(node.ID)
			job.Cursor++
			s.bus.Emit(events.NodeDeferredEvent{
				Job:       job.ID,
				NodeID:    node.ID,
				Missing:   Missing(job, node),
				Timestamp: time.Now(),
			})

		default:
			if err := s.run(ctx, job, node); err != nil {
				return err
			}
			job.Cursor++
		}

		if err := s.save(ctx, job); err != nil {
			return err
		}
	}

	// Dependencies completed during the walk may have unblocked deferred nodes
	return s.retryDeferred(ctx, job)
}

func (s *Scheduler) retryDeferred(ctx context.Context, job *model.Job) error {
	for {
		progressed := false
		for _, id := range append([]string(nil), job.Deferred...) {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scheduling %s: %w", job.ID, model.ErrInterrupted)
			}

			node, ok := job.Node(id)
			if !ok || job.IsCompleted(id) {
				job.Undefer(id)
				continue
			}
			if !job.Ready(node) {
				continue
			}

			if err := s.run(ctx, job, node); err != nil {
				return err
			}
			if err := s.save(ctx, job); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			return nil
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *model.Job, node *model.TaskNode) error {
	findings, err := s.producer.Produce(ctx, job, node)
	if err != nil {
		return err
	}

	job.Findings = append(job.Findings, findings...)
	job.MarkCompleted(node.ID)

	s.bus.Emit(events.NodeCompletedEvent{
		Job:       job.ID,
		NodeID:    node.ID,
		Findings:  len(findings),
		Timestamp: time.Now(),
	})
	return nil
}

func (s *Scheduler) save(ctx context.Context, job *model.Job) error {
	// Saves run even after cancellation so the last step is never lost
	if err := s.store.Save(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	covered, total := job.Coverage()
	s.bus.Emit(events.JobProgressEvent{
		ID:        job.ID,
		Total:     total,
		Completed: len(job.Completed),
		Deferred:  len(job.Deferred),
		Covered:   covered,
		Iteration: job.Iteration,
		Budget:    job.Budget,
		Timestamp: time.Now(),
	})
	return nil
}

// HasPending reports whether another pass could make progress: the cursor
// has not reached the end of the plan, or a deferred node is now ready.
func HasPending(job *model.Job) bool {
	if job.Cursor < len(job.Plan) {
		return true
	}
	for _, id := range job.Deferred {
		if node, ok := job.Node(id); ok && !job.IsCompleted(id) && job.Ready(node) {
			return true
		}
	}
	return false
}

// Unresolved returns deferred nodes that still have unmet dependencies.
func Unresolved(job *model.Job) []string {
	var out []string
	for _, id := range job.Deferred {
		if node, ok := job.Node(id); ok && !job.IsCompleted(id) && !job.Ready(node) {
			out = append(out, id)
		}
	}
	return out
}

// Missing lists the dependencies of node that have not completed.
func Missing(job *model.Job, node *model.TaskNode) []string {
	var out []string
	for _, dep := range node.Dependencies {
		if dep != node.ID && !job.IsCompleted(dep) {
			out = append(out, dep)
		}
	}
	return out
}
